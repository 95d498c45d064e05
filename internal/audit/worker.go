package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink delivers a batch of events to durable storage or a broker.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// Worker drains a Publisher's buffer into a Sink in batches.
type Worker struct {
	sink      Sink
	publisher *Publisher
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

type WorkerOption func(*Worker)

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewWorker(sink Sink, publisher *Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		sink:      sink,
		publisher: publisher,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run flushes on every wake-up and tick until ctx is done, then drains what is
// left within a short grace period.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			w.flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-w.publisher.wake:
			w.flush(ctx)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	for {
		batch := w.publisher.buffer.DequeueBatch(w.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := w.sink.Write(ctx, batch); err != nil {
			w.logger.WarnContext(ctx, "audit sink write failed, requeueing batch",
				"error", err,
				"events", len(batch),
			)
			for _, e := range batch {
				w.publisher.buffer.Enqueue(e)
			}
			return
		}
	}
}
