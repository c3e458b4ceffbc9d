package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

const runColumns = `id, document_name, document_chars, max_iterations, status, error, log_file, started_at, completed_at, result`

func scanRun(row scannable) (revision.Run, error) {
	var (
		r         revision.Run
		status    string
		completed *time.Time
		result    []byte
	)
	if err := row.Scan(&r.ID, &r.DocumentName, &r.DocumentChars, &r.MaxIterations,
		&status, &r.Error, &r.LogFile, &r.StartedAt, &completed, &result); err != nil {
		return r, err
	}
	r.Status = revision.Status(status)
	r.StartedAt = r.StartedAt.UTC()
	if completed != nil {
		t := completed.UTC()
		r.CompletedAt = &t
	}
	if len(result) > 0 {
		var res revision.Result
		if err := json.Unmarshal(result, &res); err != nil {
			return r, fmt.Errorf("decode result of run %s: %w", r.ID, err)
		}
		r.Result = &res
	}
	return r, nil
}

// resultJSON returns nil for runs without a result so the column stays NULL.
func resultJSON(res *revision.Result) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	return json.Marshal(res)
}
