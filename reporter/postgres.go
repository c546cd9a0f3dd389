package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/michaelpento.lv/arbbot/types"
)

const createAttemptsTable = `
CREATE TABLE IF NOT EXISTS arb_attempts (
	attempt_id     TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL,
	path           TEXT NOT NULL,
	state          TEXT NOT NULL,
	succeeded      BOOLEAN NOT NULL,
	unknown        BOOLEAN NOT NULL,
	reason         TEXT,
	raw_cost       NUMERIC,
	budget         NUMERIC,
	handle         TEXT,
	events         JSONB,
	started_at     TIMESTAMPTZ NOT NULL,
	duration_ms    BIGINT NOT NULL
)`

const insertAttempt = `
INSERT INTO arb_attempts (attempt_id, opportunity_id, path, state, succeeded, unknown, reason, raw_cost, budget, handle, events, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (attempt_id) DO NOTHING`

// Execer is the part of *pgxpool.Pool the store uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists execution outcomes to arb_attempts.
type PostgresStore struct {
	db Execer
}

// ConnectPostgres opens a pool and pings it.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func NewPostgresStore(db Execer) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates arb_attempts if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createAttemptsTable); err != nil {
		return fmt.Errorf("postgres: create arb_attempts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Report(ctx context.Context, report *types.CycleReport) error {
	var errs []error
	for _, res := range report.Results {
		if res.Execution == nil {
			continue
		}
		if err := s.Save(ctx, res.Execution); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save inserts one outcome. Saving the same attempt twice is a no-op.
func (s *PostgresStore) Save(ctx context.Context, o *types.ExecutionOutcome) error {
	events, err := json.Marshal(o.Events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	_, err = s.db.Exec(ctx, insertAttempt,
		o.AttemptID, o.OpportunityID, o.PathName, o.State, o.Succeeded, o.Unknown,
		o.Reason, numeric(o.RawCost), numeric(o.Budget), o.Handle, events,
		o.StartedAt, o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert attempt %s: %w", o.AttemptID, err)
	}
	return nil
}

func numeric(x *big.Int) pgtype.Numeric {
	if x == nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: new(big.Int).Set(x), Valid: true}
}
