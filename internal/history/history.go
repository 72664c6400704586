// File: internal/history/history.go

// Package history persists run reports to PostgreSQL so past automation
// sessions can be audited. The store is optional; the tool is fully
// functional without a database.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/orchestrator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS run_history (
	id          BIGSERIAL PRIMARY KEY,
	plan_id     TEXT        NOT NULL,
	command     TEXT        NOT NULL,
	state       TEXT        NOT NULL,
	reason      TEXT        NOT NULL DEFAULT '',
	actions     JSONB       NOT NULL DEFAULT '[]',
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT      NOT NULL
)`

const insertRun = `
INSERT INTO run_history (plan_id, command, state, reason, actions, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const selectRecent = `
SELECT plan_id, command, state, reason, actions, started_at, duration_ms
FROM run_history
ORDER BY started_at DESC
LIMIT $1`

// Record is one persisted run.
type Record struct {
	PlanID    string
	Command   string
	State     orchestrator.State
	Reason    string
	Actions   []orchestrator.ActionResult
	StartedAt time.Time
	Duration  time.Duration
}

// Store writes and reads run history.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New verifies the connection and ensures the schema exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{pool: pool, log: logger.Named("history")}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create run_history table: %w", err)
	}
	return s, nil
}

// Connect opens a connection pool for the given URL and builds a store on it.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// RecordRun persists one run report. Action results are stored as JSON so
// the schema does not chase the action vocabulary.
func (s *Store) RecordRun(ctx context.Context, report *orchestrator.RunReport) error {
	actions, err := json.Marshal(report.Actions)
	if err != nil {
		return fmt.Errorf("failed to serialize action results: %w", err)
	}

	_, err = s.pool.Exec(ctx, insertRun,
		report.PlanID,
		report.Command,
		string(report.State),
		report.Reason,
		actions,
		report.StartedAt.UTC(),
		report.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	s.log.Debug("run recorded",
		zap.String("plan_id", report.PlanID),
		zap.String("state", string(report.State)),
	)
	return nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			actionsRaw []byte
			durationMS int64
		)
		if err := rows.Scan(&rec.PlanID, &rec.Command, &rec.State, &rec.Reason, &actionsRaw, &rec.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		if err := json.Unmarshal(actionsRaw, &rec.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode action results: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
