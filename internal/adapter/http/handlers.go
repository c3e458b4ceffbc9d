package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
)

// Reviewer runs and reads review runs.
type Reviewer interface {
	Process(ctx context.Context, doc document.Document, sink progress.Sink) (*revision.Run, error)
	Stream(ctx context.Context, doc document.Document) <-chan revision.Event
	Get(ctx context.Context, id string) (*revision.Run, error)
	List(ctx context.Context, limit int) ([]revision.Run, error)
	Events(ctx context.Context, id string) ([]revision.Event, error)
}

// Ingester extracts and validates uploaded documents.
type Ingester interface {
	Ingest(ctx context.Context, filename, format string, data []byte) (document.Document, error)
}

// ChartRenderer renders a final draft as a standalone HTML page.
type ChartRenderer interface {
	Page(title, src string) ([]byte, error)
}

// HealthCheck probes one dependency. A nil Check reports "disabled".
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Reviewer       Reviewer
	Ingester       Ingester
	Renderer       ChartRenderer
	Health         []HealthCheck
	MaxUploadBytes int64
	Version        string
	Log            *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// Root serves the service banner.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ReviewForge API",
		"status":  "running",
		"version": h.Version,
	})
}

// HandleHealth probes every registered dependency.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, c := range h.Health {
		switch {
		case c.Check == nil:
			resp[c.Name] = "disabled"
		case c.Check(ctx) != nil:
			resp[c.Name] = "unavailable"
			resp["status"] = "degraded"
			code = http.StatusServiceUnavailable
		default:
			resp[c.Name] = "ok"
		}
	}
	writeJSON(w, code, resp)
}

type uploadResponse struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	TextLength int    `json:"text_length"`
}

// Upload validates an uploaded document without starting a run.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:    "File uploaded successfully",
		Filename:   doc.Name,
		TextLength: doc.Len(),
	})
}

// processResponse is the synchronous run envelope.
type processResponse struct {
	RunID       string                     `json:"run_id"`
	FinalDraft  string                     `json:"final_chart"`
	Iterations  int                        `json:"iterations"`
	History     []revision.IterationRecord `json:"history"`
	Status      revision.Status            `json:"status"`
	LogFile     string                     `json:"log_file,omitempty"`
	StartedAt   time.Time                  `json:"started_at"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
}

func envelope(run *revision.Run) processResponse {
	resp := processResponse{
		RunID:       run.ID,
		Status:      run.Status,
		LogFile:     run.LogFile,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		History:     []revision.IterationRecord{},
	}
	if run.Result != nil {
		resp.FinalDraft = run.Result.FinalDraft
		resp.Iterations = run.Result.Iterations
		resp.History = run.Result.History
	}
	return resp
}

// Process runs the loop synchronously over an uploaded document.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	run, err := h.Reviewer.Process(r.Context(), doc, nil)
	if err != nil {
		writeDomainError(w, h.logger(), err, "review failed")
		return
	}
	writeJSON(w, http.StatusOK, envelope(run))
}

// ListRuns lists archived runs, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Reviewer.List(r.Context(), queryInt(r, "limit", runstore.DefaultListLimit))
	if err != nil {
		writeDomainError(w, h.logger(), err, "runs not available")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one archived run.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Reviewer.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RunEvents returns the archived progress events of a run.
func (h *Handlers) RunEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Reviewer.Events(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// RunChart renders a run's final draft as HTML.
func (h *Handlers) RunChart(w http.ResponseWriter, r *http.Request) {
	run, err := h.Reviewer.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(), err, "run not found")
		return
	}
	if run.Result == nil {
		writeError(w, http.StatusNotFound, "run has no chart")
		return
	}
	page, err := h.Renderer.Page("Falsity chart: "+run.DocumentName, run.Result.FinalDraft)
	if err != nil {
		h.logger().Error("render chart", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// readDocument reads the multipart "file" field and ingests it. On failure
// the response has been written.
func (h *Handlers) readDocument(w http.ResponseWriter, r *http.Request) (document.Document, bool) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "file is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart upload")
		}
		return document.Document{}, false
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return document.Document{}, false
	}

	doc, err := h.Ingester.Ingest(r.Context(), header.Filename, r.FormValue("format"), data)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			h.logger().Error("ingest upload", "filename", header.Filename, "error", err)
		}
		writeDomainError(w, h.logger(), err, "document rejected")
		return document.Document{}, false
	}
	return doc, true
}
