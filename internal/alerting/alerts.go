// internal/alerting/alerts.go
package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeverityPage     = "page"
)

// Well-known alert keys raised by the controller. Keys identify an ongoing
// condition: firing the same key twice is one incident, not two.
const (
	KeyNoHealthyTarget = "no_healthy_target"
	KeyRollbackFailed  = "rollback_failed"
	KeyCascadeRisk     = "cascade_risk"
)

// Alert represents a fired alert.
type Alert struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Severity   string    `json:"severity"`
	Region     string    `json:"region,omitempty"`
	Message    string    `json:"message"`
	Actions    []string  `json:"actions,omitempty"`
	FiredAt    time.Time `json:"fired_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// Manager deduplicates alerts by key so an unchanged condition is reported
// once per onset, and fans fired alerts out to subscribers.
type Manager struct {
	mu       sync.Mutex
	firing   map[string]*Alert
	history  []Alert
	handlers []func(Alert)
	maxHist  int
	logger   *zap.Logger
}

// NewManager creates an alert manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		firing:  make(map[string]*Alert),
		maxHist: 100,
		logger:  logger,
	}
}

// Subscribe registers a handler invoked for every newly fired alert.
func (m *Manager) Subscribe(handler func(Alert)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Fire raises the alert unless the same key is already firing. Returns true
// when this call started a new incident.
func (m *Manager) Fire(key, severity, regionID, message string, actions []string) bool {
	m.mu.Lock()
	if _, ok := m.firing[key]; ok {
		m.mu.Unlock()
		return false
	}

	alert := Alert{
		ID:       uuid.New().String(),
		Key:      key,
		Severity: severity,
		Region:   regionID,
		Message:  message,
		Actions:  actions,
		FiredAt:  time.Now().UTC(),
	}
	m.firing[key] = &alert

	handlers := make([]func(Alert), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	m.logger.Warn("alert fired",
		zap.String("key", key),
		zap.String("severity", severity),
		zap.String("region", regionID),
		zap.String("message", message))

	for _, handler := range handlers {
		go handler(alert)
	}
	return true
}

// Resolve clears a firing alert. Resolving a key that is not firing is a
// no-op.
func (m *Manager) Resolve(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.firing[key]
	if !ok {
		return
	}
	delete(m.firing, key)

	alert.ResolvedAt = time.Now().UTC()
	m.history = append(m.history, *alert)
	if len(m.history) > m.maxHist {
		m.history = m.history[len(m.history)-m.maxHist:]
	}

	m.logger.Info("alert resolved", zap.String("key", key))
}

// IsFiring reports whether the key has an active alert.
func (m *Manager) IsFiring(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.firing[key]
	return ok
}

// Firing returns a copy of all currently firing alerts.
func (m *Manager) Firing() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.firing))
	for _, a := range m.firing {
		out = append(out, *a)
	}
	return out
}
