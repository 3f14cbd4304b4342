package publisher

import (
	"context"

	audit "veridoc/pkg/platform/audit"
)

// Sink receives committed audit entries. Satisfied by Publisher; tests
// substitute a recording fake.
type Sink interface {
	Publish(ctx context.Context, entry audit.Entry)
}

// Worker drains committed entries from a channel and hands them to the
// sink. The orchestrator enqueues after its transaction commits, so the
// worker only ever sees durable entries.
type Worker struct {
	sink  Sink
	inbox <-chan audit.Entry
}

func NewWorker(sink Sink, inbox <-chan audit.Entry) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

// Run blocks until the context is cancelled, draining what remains in the
// inbox before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case entry := <-w.inbox:
					w.sink.Publish(context.Background(), entry)
				default:
					return ctx.Err()
				}
			}
		case entry := <-w.inbox:
			w.sink.Publish(ctx, entry)
		}
	}
}
