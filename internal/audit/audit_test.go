package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolegate/pkg/requestcontext"
)

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

func TestActionCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, ActionUserDeleted.Category())
	assert.Equal(t, CategorySecurity, ActionLoginFailed.Category())
	assert.Equal(t, CategoryOperations, ActionLoginSucceeded.Category())
	assert.Equal(t, CategoryOperations, Action("something_else").Category())
}

func TestEnrich(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", firefoxUA)

	e := Enrich(ctx, Event{Action: ActionUserCreated, SubjectID: "7"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, CategoryCompliance, e.Category)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "203.0.113.9", e.ClientIP)
	require.NotNil(t, e.Client)
	assert.Equal(t, "Firefox", e.Client.Browser)
	assert.Equal(t, "120.0", e.Client.BrowserVersion)
	assert.False(t, e.Client.Mobile)
}

func TestEnrichKeepsExplicitFields(t *testing.T) {
	e := Enrich(context.Background(), Event{ID: "fixed", RequestID: "mine", Category: CategorySecurity, Action: ActionUserCreated})
	assert.Equal(t, "fixed", e.ID)
	assert.Equal(t, "mine", e.RequestID)
	assert.Equal(t, CategorySecurity, e.Category)
	assert.Nil(t, e.Client, "no user agent, no client details")
}

func TestParseClientBot(t *testing.T) {
	c := ParseClient("Googlebot/2.1 (+http://www.google.com/bot.html)")
	assert.True(t, c.Bot)
}

func TestRingBuffer(t *testing.T) {
	b := NewRingBuffer(2)
	b.Enqueue(Event{ID: "1"})
	b.Enqueue(Event{ID: "2"})
	b.Enqueue(Event{ID: "3"})

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(1), b.Dropped())

	batch := b.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "2", batch[0].ID)
	assert.Equal(t, "3", batch[1].ID)
	assert.Nil(t, b.DequeueBatch(1))
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   int
}

func (s *recordingSink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("broker unavailable")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestWorkerDeliversEmittedEvents(t *testing.T) {
	pub := NewPublisher(nil)
	sink := &recordingSink{}
	w := NewWorker(sink, pub, WithBatchSize(2), WithFlushInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionUserUpdated, SubjectID: "1"}))
	}
	require.Eventually(t, func() bool { return sink.count() == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, pub.Pending())
}

func TestWorkerRequeuesOnSinkFailure(t *testing.T) {
	pub := NewPublisher(nil)
	sink := &recordingSink{fail: 1}
	w := NewWorker(sink, pub)

	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionUserDeleted}))
	w.flush(context.Background())
	assert.Equal(t, 1, pub.Pending())
	assert.Zero(t, sink.count())

	w.flush(context.Background())
	assert.Zero(t, pub.Pending())
	assert.Equal(t, 1, sink.count())
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	pub := NewPublisher(nil)
	sink := &recordingSink{}
	w := NewWorker(sink, pub, WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionUserCreated}))
	// Drain the wake-up so only the shutdown path can deliver.
	<-pub.wake

	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
	assert.Equal(t, 1, sink.count())
}

func TestNewKafkaSinkValidation(t *testing.T) {
	_, err := NewKafkaSink(nil, "audit")
	assert.ErrorContains(t, err, "no brokers")
	_, err = NewKafkaSink([]string{"localhost:9092"}, "")
	assert.ErrorContains(t, err, "topic is required")
}
