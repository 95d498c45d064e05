package audit

import "context"

// Publisher accepts audit events without blocking the request path. Events are
// enriched from the request context, buffered, and drained by a Worker.
type Publisher struct {
	buffer *RingBuffer
	wake   chan struct{}
}

func NewPublisher(buffer *RingBuffer) *Publisher {
	if buffer == nil {
		buffer = NewRingBuffer(0)
	}
	return &Publisher{buffer: buffer, wake: make(chan struct{}, 1)}
}

// Emit enriches and buffers e. It never blocks; on overflow the oldest event is dropped.
func (p *Publisher) Emit(ctx context.Context, e Event) error {
	p.buffer.Enqueue(Enrich(ctx, e))
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports how many events are waiting for the worker.
func (p *Publisher) Pending() int {
	return p.buffer.Len()
}

// Dropped reports how many events were discarded on overflow.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}
