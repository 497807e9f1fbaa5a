// internal/ledger/ledger.go
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// DB is the slice of the pgx pool the ledger uses. Tests substitute a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Ledger persists one row per executed step: the terse, replayable record
// of what the engine did to a page and how the gate stood at the time.
type Ledger struct {
	db     DB
	logger *zap.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS progress_steps (
	step_id     TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	at          TIMESTAMPTZ NOT NULL,
	intent      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	dom_version BIGINT NOT NULL,
	gate        TEXT NOT NULL,
	status      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_progress_steps_session ON progress_steps (session_id, at);
`

// New connects to the configured database and ensures the schema exists.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	l, err := NewWithDB(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// NewWithDB wraps an existing connection; used by tests.
func NewWithDB(ctx context.Context, db DB, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{db: db, logger: logger.Named("ledger")}
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return l, nil
}

// RecordStep appends one step. Ledger failures are reported but must never
// stop the session; the caller decides whether to log and continue.
func (l *Ledger) RecordStep(ctx context.Context, step schemas.ProgressStep) error {
	const insertSQL = `
		INSERT INTO progress_steps (step_id, session_id, at, intent, detail, dom_version, gate, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := l.db.Exec(ctx, insertSQL,
		step.StepID, step.SessionID, step.At, string(step.Intent),
		step.Detail, int64(step.DOMVersion), string(step.Gate), string(step.Status))
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", step.StepID, err)
	}
	return nil
}

// Steps returns a session's steps in execution order.
func (l *Ledger) Steps(ctx context.Context, sessionID string) ([]schemas.ProgressStep, error) {
	const selectSQL = `
		SELECT step_id, session_id, at, intent, detail, dom_version, gate, status
		FROM progress_steps WHERE session_id = $1 ORDER BY at`

	rows, err := l.db.Query(ctx, selectSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []schemas.ProgressStep
	for rows.Next() {
		var s schemas.ProgressStep
		var intent, gate, status string
		var domVersion int64
		if err := rows.Scan(&s.StepID, &s.SessionID, &s.At, &intent, &s.Detail, &domVersion, &gate, &status); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		s.Intent = schemas.IntentType(intent)
		s.DOMVersion = uint64(domVersion)
		s.Gate = schemas.GateState(gate)
		s.Status = schemas.OutcomeStatus(status)
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("step iteration failed: %w", err)
	}
	return steps, nil
}

// Close releases the underlying pool.
func (l *Ledger) Close() {
	l.db.Close()
}
