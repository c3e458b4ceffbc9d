package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

// SSE event names.
const (
	sseProgress = "progress"
	sseComplete = "complete"
	sseError    = "error"
)

func sseEventName(step revision.Step) string {
	switch step {
	case revision.StepComplete:
		return sseComplete
	case revision.StepError:
		return sseError
	default:
		return sseProgress
	}
}

// ProcessStream runs the loop and streams its progress as Server-Sent
// Events. The stream ends after the terminal event; a client disconnect
// cancels the run.
func (h *Handlers) ProcessStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range h.Reviewer.Stream(r.Context(), doc) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger().Error("marshal sse event", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sseEventName(ev.Step), data); err != nil {
			// Client went away; the request context cancels the run.
			return
		}
		flusher.Flush()
	}
}
