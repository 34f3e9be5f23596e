// internal/broadcast/broadcaster_test.go
package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// collector gathers events from a subscription for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) listen(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEmitReachesAllSubscribers(t *testing.T) {
	b := New()
	var a, c collector
	b.Subscribe(a.listen)
	b.Subscribe(c.listen)

	b.Emit(Event{OwnerID: "owner-1", Kind: "balance"})

	waitFor(t, func() bool { return len(a.snapshot()) == 1 && len(c.snapshot()) == 1 })
	assert.Equal(t, "owner-1", a.snapshot()[0].OwnerID)
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := New()
	b.Emit(Event{OwnerID: "owner-1", Kind: "balance"})

	var late collector
	b.Subscribe(late.listen)
	b.Emit(Event{OwnerID: "owner-1", Kind: "disconnect"})

	waitFor(t, func() bool { return len(late.snapshot()) == 1 })
	assert.Equal(t, "disconnect", late.snapshot()[0].Kind)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	var a, keep collector
	id := b.Subscribe(a.listen)
	b.Subscribe(keep.listen)

	b.Unsubscribe(id)
	b.Emit(Event{OwnerID: "owner-1", Kind: "balance"})

	waitFor(t, func() bool { return len(keep.snapshot()) == 1 })
	assert.Empty(t, a.snapshot())

	// Unknown ids are tolerated.
	b.Unsubscribe(9999)
}

func TestPerListenerEmissionOrder(t *testing.T) {
	b := New()
	var c collector
	b.Subscribe(c.listen)

	for _, kind := range []string{"connect", "balance", "balance", "disconnect"} {
		b.Emit(Event{OwnerID: "owner-1", Kind: kind})
	}

	waitFor(t, func() bool { return len(c.snapshot()) == 4 })
	got := c.snapshot()
	assert.Equal(t, "connect", got[0].Kind)
	assert.Equal(t, "balance", got[1].Kind)
	assert.Equal(t, "balance", got[2].Kind)
	assert.Equal(t, "disconnect", got[3].Kind)
}
