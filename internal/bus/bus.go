// Package bus is the in-process publish/subscribe hub the client components
// communicate through instead of holding references to each other.
//
// Dispatch is synchronous on the publisher's goroutine: handlers run before
// Publish returns, in subscription order, so repeated publishes of one kind
// reach each subscriber in publish order. There is no queue and no
// backpressure; handlers must not block. A publish with no subscribers is
// dropped.
package bus

import (
	"log/slog"
	"sync"
)

// Handler consumes one event. Handlers for a kind always receive the payload
// type registered for that kind and may type-assert without a comma-ok check
// at their own risk.
type Handler func(Event)

type subscription struct {
	fn Handler
}

// Bus fans events out to subscribers keyed by event kind.
// It is safe for concurrent use.
type Bus struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[Kind][]*subscription
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[Kind][]*subscription),
	}
}

// Subscribe registers fn for events of the given kind and returns a cancel
// function. Cancelling twice is harmless.
func (b *Bus) Subscribe(kind Kind, fn Handler) (cancel func()) {
	sub := &subscription{fn: fn}

	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, sub) })
	}
}

// Publish delivers e to every current subscriber of its kind, in
// subscription order. A panicking handler is recovered and logged and does
// not prevent delivery to the remaining subscribers. Handlers may publish
// further events; those dispatch inline.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs[e.EventKind()]))
	copy(subs, b.subs[e.EventKind()])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(e, sub)
	}
}

func (b *Bus) deliver(e Event, sub *subscription) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus: handler panicked", "kind", e.EventKind(), "panic", r)
		}
	}()
	sub.fn(e)
}

func (b *Bus) remove(kind Kind, target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[kind]
	for i, sub := range subs {
		if sub == target {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
