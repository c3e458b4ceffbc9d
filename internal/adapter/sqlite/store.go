package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
)

// Store implements runstore.Store on SQLite.
type Store struct {
	db *sql.DB
}

const runColumns = `id, document_name, document_chars, max_iterations, status, error, log_file, started_at, completed_at, result`

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (revision.Run, error) {
	var (
		r         revision.Run
		status    string
		started   int64
		completed sql.NullInt64
		result    sql.NullString
	)
	if err := row.Scan(&r.ID, &r.DocumentName, &r.DocumentChars, &r.MaxIterations,
		&status, &r.Error, &r.LogFile, &started, &completed, &result); err != nil {
		return r, err
	}
	r.Status = revision.Status(status)
	r.StartedAt = time.Unix(0, started).UTC()
	if completed.Valid {
		t := time.Unix(0, completed.Int64).UTC()
		r.CompletedAt = &t
	}
	if result.Valid && result.String != "" {
		var res revision.Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return r, fmt.Errorf("decode result of run %s: %w", r.ID, err)
		}
		r.Result = &res
	}
	return r, nil
}

func (s *Store) SaveRun(ctx context.Context, run *revision.Run) error {
	var result sql.NullString
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		result = sql.NullString{String: string(b), Valid: true}
	}
	var completed sql.NullInt64
	if run.CompletedAt != nil {
		completed = sql.NullInt64{Int64: run.CompletedAt.UnixNano(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   document_name = excluded.document_name,
		   document_chars = excluded.document_chars,
		   max_iterations = excluded.max_iterations,
		   status = excluded.status,
		   error = excluded.error,
		   log_file = excluded.log_file,
		   started_at = excluded.started_at,
		   completed_at = excluded.completed_at,
		   result = excluded.result`,
		run.ID, run.DocumentName, run.DocumentChars, run.MaxIterations, string(run.Status),
		run.Error, run.LogFile, run.StartedAt.UnixNano(), completed, result)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*revision.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, seq, step, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, seq) DO NOTHING`,
		runID, seq, string(ev.Step), string(payload))
	if err != nil {
		return fmt.Errorf("append event %s/%d: %w", runID, seq, err)
	}
	return nil
}

func (s *Store) Events(ctx context.Context, runID string) ([]revision.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM run_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	events := []revision.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev revision.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ runstore.Store = (*Store)(nil)
