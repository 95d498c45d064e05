//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"rolegate/pkg/testutil/containers"
)

func TestKafkaSinkProducesKeyedRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	topic := "rolegate.audit.test"
	sink, err := NewKafkaSink([]string{broker.Broker}, topic)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Ping(ctx))
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	events := []Event{
		Enrich(ctx, Event{Action: ActionUserCreated, SubjectID: "42", ActorID: "1"}),
		Enrich(ctx, Event{Action: ActionUserDeleted, SubjectID: "42", ActorID: "1"}),
	}
	require.NoError(t, sink.Write(ctx, events))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var got []Event
	for len(got) < len(events) {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			assert.Equal(t, "42", string(r.Key))
			var e Event
			require.NoError(t, json.Unmarshal(r.Value, &e))
			got = append(got, e)
		})
	}
	assert.Equal(t, ActionUserCreated, got[0].Action)
	assert.Equal(t, ActionUserDeleted, got[1].Action)
	assert.Equal(t, CategoryCompliance, got[1].Category)
}
