// Package events implements the event broker that publishes schema
// lifecycle transitions, atom writes, and policy denials to interested
// subscribers. Subscribers narrow delivery to the event types and schema
// they care about, so a client watching one schema's approvals is never
// woken for another schema's mutation traffic.
package events

import (
	"sync"
	"time"

	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
)

// EventType identifies the kind of occurrence an Event reports.
type EventType string

const (
	EventSchemaDiscovered EventType = "schema.discovered"
	EventSchemaApproved   EventType = "schema.approved"
	EventSchemaBlocked    EventType = "schema.blocked"
	EventSchemaUnloaded   EventType = "schema.unloaded"
	EventAtomCreated      EventType = "atom.created"
	EventRefAdvanced      EventType = "ref.advanced"
	EventFieldTombstoned  EventType = "field.tombstoned"
	EventPermissionDenied EventType = "permission.denied"
)

// defaultSubscriberBuffer bounds how far a slow subscriber may fall behind
// before the broker starts dropping events destined for it rather than
// blocking publishers.
const defaultSubscriberBuffer = 32

// Event reports one occurrence against a schema (Schema is empty for
// broker-wide events, though none currently are).
type Event struct {
	Type      EventType
	Schema    string
	Message   string
	Metadata  map[string]string
	Timestamp time.Time
}

// Subscription is a live filtered view onto the broker's event stream.
// Receive from C; call Close when done watching.
type Subscription struct {
	C chan *Event

	broker *Broker
	types  map[EventType]bool // nil matches every type
	schema string             // "" matches every schema
}

func (s *Subscription) matches(e *Event) bool {
	if s.types != nil && !s.types[e.Type] {
		return false
	}
	if s.schema != "" && e.Schema != s.schema {
		return false
	}
	return true
}

// Close unsubscribes and releases the subscription's channel.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// SubscribeOptions narrows which events a Subscription receives. A zero
// value subscribes to everything.
type SubscribeOptions struct {
	Types      []EventType
	Schema     string
	BufferSize int
}

// Broker fans published events out to subscribers filtered by event type
// and schema. A single internal goroutine serializes delivery, so
// subscribers always observe events in publish order.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}

	incoming chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker constructs a Broker. Call Start before publishing.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscription]struct{}),
		incoming:    make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's delivery loop in the background.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts delivery and closes every live subscription's channel.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		close(sub.C)
	}
	b.subscribers = make(map[*Subscription]struct{})
}

// Subscribe registers a new filtered view onto the event stream.
func (b *Broker) Subscribe(opts SubscribeOptions) *Subscription {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultSubscriberBuffer
	}

	var types map[EventType]bool
	if len(opts.Types) > 0 {
		types = make(map[EventType]bool, len(opts.Types))
		for _, t := range opts.Types {
			types[t] = true
		}
	}

	sub := &Subscription{
		C:      make(chan *Event, size),
		broker: b,
		types:  types,
		schema: opts.Schema,
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.C)
}

// Publish enqueues event for delivery. Publish never blocks on a slow
// subscriber: the bound is the broker's own incoming queue, dropped only
// if the broker itself is shutting down.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()

	select {
	case b.incoming <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.incoming:
			b.deliver(event)
		case <-b.stopCh:
			return
		}
	}
}

// deliver sends event to every subscription whose filter matches it. A
// subscriber whose buffer is already full has its event dropped rather
// than stalling delivery to everyone else.
func (b *Broker) deliver(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if !sub.matches(event) {
			continue
		}
		select {
		case sub.C <- event:
		default:
			metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
			log.Logger.Warn().Str("event", string(event.Type)).Str("schema", event.Schema).Msg("subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
