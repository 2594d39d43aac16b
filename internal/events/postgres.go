// internal/events/postgres.go
package events

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/region"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS failover_events (
    id                 TEXT PRIMARY KEY,
    occurred_at        TIMESTAMPTZ NOT NULL,
    from_region        TEXT NOT NULL,
    to_region          TEXT NOT NULL,
    reason             TEXT NOT NULL,
    duration_ms        BIGINT NOT NULL,
    success            BOOLEAN NOT NULL,
    rollback_performed BOOLEAN NOT NULL
)`

const insertEvent = `
INSERT INTO failover_events
    (id, occurred_at, from_region, to_region, reason, duration_ms, success, rollback_performed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// PostgresSink persists failover events to Postgres.
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink opens the database and ensures the events table exists.
func NewPostgresSink(dsn string, logger *zap.Logger) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresSink{db: db, logger: logger}, nil
}

// Record implements Sink. Insert failures are logged, never propagated: the
// audit trail must not interfere with failover itself.
func (s *PostgresSink) Record(ctx context.Context, event region.FailoverEvent) {
	_, err := s.db.ExecContext(ctx, insertEvent,
		event.ID,
		event.Timestamp,
		event.From,
		event.To,
		event.Reason,
		event.Duration.Milliseconds(),
		event.Success,
		event.RollbackPerformed,
	)
	if err != nil {
		s.logger.Error("persist failover event failed",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
