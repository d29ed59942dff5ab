package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker()
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func waitForEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(SubscribeOptions{})
	defer sub.Close()

	b.Publish(&Event{Type: EventSchemaApproved, Schema: "Post"})

	got := waitForEvent(t, sub.C)
	assert.Equal(t, EventSchemaApproved, got.Type)
	assert.Equal(t, "Post", got.Schema)
	assert.False(t, got.Timestamp.IsZero())
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(SubscribeOptions{Types: []EventType{EventSchemaBlocked}})
	defer sub.Close()

	b.Publish(&Event{Type: EventSchemaApproved, Schema: "Post"})
	b.Publish(&Event{Type: EventSchemaBlocked, Schema: "Post"})

	got := waitForEvent(t, sub.C)
	assert.Equal(t, EventSchemaBlocked, got.Type)

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected second event delivered: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeFiltersBySchema(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(SubscribeOptions{Schema: "Comment"})
	defer sub.Close()

	b.Publish(&Event{Type: EventSchemaApproved, Schema: "Post"})
	b.Publish(&Event{Type: EventSchemaApproved, Schema: "Comment"})

	got := waitForEvent(t, sub.C)
	assert.Equal(t, "Comment", got.Schema)
}

func TestPublishDropsOnFullSubscriberBuffer(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(SubscribeOptions{BufferSize: 1})
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish(&Event{Type: EventAtomCreated, Schema: "Post"})
	}

	require.Eventually(t, func() bool {
		return len(sub.C) == 1
	}, time.Second, 10*time.Millisecond, "subscriber buffer should hold exactly its capacity, excess dropped")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(SubscribeOptions{})
	sub.Close()

	assert.Equal(t, 0, b.SubscriberCount())
	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestStopClosesAllSubscriberChannels(t *testing.T) {
	b := NewBroker()
	b.Start()
	sub := b.Subscribe(SubscribeOptions{})

	b.Stop()

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after broker stop")
}
