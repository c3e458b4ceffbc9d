package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/messagequeue"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

// Publisher forwards progress events to a message queue. Every event goes
// to runs.progress.{run_id}; terminal events are also published on
// runs.complete.
type Publisher struct {
	q   messagequeue.Queue
	log *slog.Logger
}

// NewPublisher creates a progress sink publishing to q.
func NewPublisher(q messagequeue.Queue, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{q: q, log: log}
}

// Emit implements progress.Sink. Publish failures are logged and dropped.
func (p *Publisher) Emit(ctx context.Context, ev revision.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal progress event", "error", err)
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := p.q.Publish(ctx, messagequeue.ProgressSubject(ev.RunID), data); err != nil {
		p.log.Warn("publish progress event", "run_id", ev.RunID, "step", ev.Step, "error", err)
	}
	if ev.Step.Terminal() {
		if err := p.q.Publish(ctx, messagequeue.SubjectRunComplete, data); err != nil {
			p.log.Warn("publish run completion", "run_id", ev.RunID, "error", err)
		}
	}
}

var _ progress.Sink = (*Publisher)(nil)
