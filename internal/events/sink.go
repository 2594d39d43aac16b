// Package events persists failover events for audit. Sinks are best-effort:
// a sink that cannot record must never block or fail a failover.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/region"
)

// Sink records completed failover events.
type Sink interface {
	Record(ctx context.Context, event region.FailoverEvent)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, event region.FailoverEvent) {
	s.logger.Info("failover event",
		zap.String("event_id", event.ID),
		zap.String("from", event.From),
		zap.String("to", event.To),
		zap.String("reason", event.Reason),
		zap.Duration("duration", event.Duration),
		zap.Bool("success", event.Success),
		zap.Bool("rollback_performed", event.RollbackPerformed))
}

// MultiSink fans one event out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Record implements Sink.
func (m *MultiSink) Record(ctx context.Context, event region.FailoverEvent) {
	for _, s := range m.sinks {
		s.Record(ctx, event)
	}
}
