// internal/broadcast/broadcaster.go
package broadcast

import "sync"

// Event tells sibling engine instances that durable state for an owner
// changed and should be re-fetched. SourceID identifies the emitting
// instance so it can skip its own emissions.
type Event struct {
	OwnerID  string
	SourceID string
	Kind     string // "connect", "balance" or "disconnect"
}

// Listener receives events. Callbacks run on their own goroutine; a slow
// listener never blocks the emitter.
type Listener func(Event)

// Broadcaster is an in-process publish/subscribe channel. Delivery is
// at-most-once with no replay: a listener subscribed after an emission does
// not receive it. Each listener sees its events in emission order.
//
// Listener lifetime is explicit: Subscribe returns an id that the owner must
// pass to Unsubscribe on teardown, instead of a module-level listener set
// that leaks entries.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers fn and returns its subscription id. A per-listener
// goroutine drains a buffered queue so emission order is preserved per
// listener without coupling listeners to each other.
func (b *Broadcaster) Subscribe(fn Listener) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, 64)
	b.subs[id] = ch
	go func() {
		for ev := range ch {
			fn(ev)
		}
	}()
	return id
}

// Unsubscribe removes the listener. Safe to call with an unknown id.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Emit delivers ev to every current subscriber. Call only after the
// corresponding remote mutation has been durably committed. Fire-and-forget:
// an event for a listener whose queue is full is dropped rather than
// blocking the emitter.
func (b *Broadcaster) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
