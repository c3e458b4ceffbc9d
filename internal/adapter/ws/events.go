package ws

import (
	"context"
	"encoding/json"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/broadcast"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

// Event type constants for WebSocket messages.
const (
	EventRunProgress = "run.progress"
	EventRunComplete = "run.complete"
	EventRunError    = "run.error"

	// EventProviderStatus reports generation circuit breaker transitions.
	EventProviderStatus = "provider.status"
)

// ProviderStatusEvent is the payload of EventProviderStatus.
type ProviderStatusEvent struct {
	Provider string `json:"provider"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// EventType maps a progress step to its message type.
func EventType(step revision.Step) string {
	switch step {
	case revision.StepComplete:
		return EventRunComplete
	case revision.StepError:
		return EventRunError
	default:
		return EventRunProgress
	}
}

// BroadcastEvent marshals payload and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	h.broadcastRun(ctx, eventType, "", payload)
}

func (h *Hub) broadcastRun(ctx context.Context, eventType, runID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, RunID: runID, Payload: data})
}

// Emit implements progress.Sink.
func (h *Hub) Emit(ctx context.Context, ev revision.Event) {
	h.broadcastRun(ctx, EventType(ev.Step), ev.RunID, ev)
}

var (
	_ progress.Sink         = (*Hub)(nil)
	_ broadcast.Broadcaster = (*Hub)(nil)
)
