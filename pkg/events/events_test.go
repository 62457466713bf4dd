package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishAndSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()

	broker.Publish(&Event{
		AttemptID: "prod-v2-0001",
		Type:      EventRolloutStarted,
		Message:   "canary rollout started",
	})

	select {
	case event := <-sub:
		assert.Equal(t, EventRolloutStarted, event.Type)
		assert.Equal(t, "prod-v2-0001", event.AttemptID)
		assert.False(t, event.Timestamp.IsZero(), "broker must stamp events")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	first := broker.Subscribe()
	second := broker.Subscribe()
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventStageAdvanced})

	for _, sub := range []Subscriber{first, second} {
		select {
		case event := <-sub:
			assert.Equal(t, EventStageAdvanced, event.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered to all subscribers")
		}
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)

	assert.Equal(t, 0, broker.SubscriberCount())

	// Channel is closed after unsubscribe
	_, open := <-sub
	assert.False(t, open)
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	// Subscriber that never drains
	_ = broker.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			broker.Publish(&Event{Type: EventStageStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}
}
