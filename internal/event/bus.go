// Package event provides the in-process pub/sub bus, built on watermill.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// eventsTopic is the watermill topic every event is mirrored to.
const eventsTopic = "events"

// Subscriber receives events.
type Subscriber func(Event)

type entry struct {
	id uint64
	fn Subscriber
}

// Bus fans events out to subscribers. Typed subscribers get synchronous
// direct dispatch; every event is also mirrored onto a watermill
// gochannel topic as serialized JSON for channel-style consumers.
type Bus struct {
	mu          sync.RWMutex
	pubsub      *gochannel.GoChannel
	subscribers map[Type][]entry
	global      []entry
	nextID      uint64
	closed      bool
}

var globalBus = NewBus()

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NopLogger{},
		),
		subscribers: make(map[Type][]entry),
	}
}

// Subscribe registers fn for one event type on the global bus.
// The returned function unsubscribes.
func Subscribe(t Type, fn Subscriber) func() { return globalBus.Subscribe(t, fn) }

func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[t] = append(b.subscribers[t], entry{id: id, fn: fn})
	return func() { b.remove(t, id) }
}

// SubscribeAll registers fn for every event type on the global bus.
func SubscribeAll(fn Subscriber) func() { return globalBus.SubscribeAll(fn) }

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, entry{id: id, fn: fn})
	return func() { b.removeGlobal(id) }
}

func (b *Bus) remove(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[t]
	for i, e := range subs {
		if e.id == id {
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.global {
		if e.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

// Publish delivers ev synchronously to every matching subscriber on the
// global bus. Delivery is synchronous so that UI layers observe permission
// prompts before the loop suspends.
func Publish(ev Event) { globalBus.Publish(ev) }

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers[ev.Type])+len(b.global))
	for _, e := range b.subscribers[ev.Type] {
		subs = append(subs, e.fn)
	}
	for _, e := range b.global {
		subs = append(subs, e.fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}

	if data, err := json.Marshal(ev); err == nil {
		// Mirror onto the watermill topic; no subscribers means the
		// message is dropped, which is fine for an in-process bus.
		_ = b.pubsub.Publish(eventsTopic, message.NewMessage(watermill.NewUUID(), data))
	}
}

// Messages returns the serialized event stream from the global bus. The
// subscription ends when ctx is cancelled.
func Messages(ctx context.Context) (<-chan *message.Message, error) {
	return globalBus.Messages(ctx)
}

func (b *Bus) Messages(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, eventsTopic)
}

// Reset replaces the global bus, dropping all subscribers. Test helper.
func Reset() {
	globalBus.Close()
	globalBus = NewBus()
}

// Close shuts the bus down; further publishes and subscribes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[Type][]entry)
	b.global = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}
