package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
)

// Store implements runstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SaveRun(ctx context.Context, run *revision.Run) error {
	result, err := resultJSON(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   document_name = EXCLUDED.document_name,
		   document_chars = EXCLUDED.document_chars,
		   max_iterations = EXCLUDED.max_iterations,
		   status = EXCLUDED.status,
		   error = EXCLUDED.error,
		   log_file = EXCLUDED.log_file,
		   started_at = EXCLUDED.started_at,
		   completed_at = EXCLUDED.completed_at,
		   result = EXCLUDED.result`,
		run.ID, run.DocumentName, run.DocumentChars, run.MaxIterations, string(run.Status),
		run.Error, run.LogFile, run.StartedAt, run.CompletedAt, result)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*revision.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]revision.Run, error) {
	if limit <= 0 {
		limit = runstore.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []revision.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, runID string, seq int, ev revision.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_events (run_id, seq, step, payload) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, seq) DO NOTHING`,
		runID, seq, string(ev.Step), payload)
	if err != nil {
		return fmt.Errorf("append event %s/%d: %w", runID, seq, err)
	}
	return nil
}

func (s *Store) Events(ctx context.Context, runID string) ([]revision.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM run_events WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", runID, err)
	}
	defer rows.Close()

	events := []revision.Event{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev revision.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ runstore.Store = (*Store)(nil)
