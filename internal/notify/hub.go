// Package notify queues registry changes published from plugin lifecycle
// goroutines and delivers them on the update goroutine.
//
// Publishers call Publish under the hub's lock; nothing is delivered until the
// owner calls Dispatch at a tick boundary. Subscribers therefore run on the
// update goroutine only and never observe a change mid-tick.
package notify

import (
	"sync"
	"sync/atomic"
)

// Op is the kind of change carried by a Change.
type Op int

const (
	// Added reports a newly registered entry.
	Added Op = iota + 1
	// Removed reports an unregistered entry.
	Removed
	// Changed reports an entry whose shape changed in place.
	Changed
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Change is one queued registry change.
type Change[K comparable] struct {
	Key     K
	Op      Op
	Version uint64
}

// subscriber holds a callback and an optional key filter.
type subscriber[K comparable] struct {
	id     uint64
	key    K
	keyed  bool
	fn     func(Change[K])
	active atomic.Bool
}

// Hub is a deferred, synchronous change dispatcher.
type Hub[K comparable] struct {
	queueMu sync.Mutex
	pending []Change[K]

	mu   sync.RWMutex
	subs []*subscriber[K]
	seq  atomic.Uint64
}

// New creates an empty hub.
func New[K comparable]() *Hub[K] {
	return &Hub[K]{}
}

// Publish enqueues a change. Safe for concurrent use.
func (h *Hub[K]) Publish(c Change[K]) {
	h.queueMu.Lock()
	h.pending = append(h.pending, c)
	h.queueMu.Unlock()
}

// Pending returns the number of queued changes.
func (h *Hub[K]) Pending() int {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	return len(h.pending)
}

// Subscribe registers fn for changes of key. The returned func cancels the
// subscription; it is idempotent.
func (h *Hub[K]) Subscribe(key K, fn func(Change[K])) func() {
	return h.add(&subscriber[K]{key: key, keyed: true, fn: fn})
}

// SubscribeAll registers fn for every change.
func (h *Hub[K]) SubscribeAll(fn func(Change[K])) func() {
	return h.add(&subscriber[K]{fn: fn})
}

func (h *Hub[K]) add(sub *subscriber[K]) func() {
	sub.id = h.seq.Add(1)
	sub.active.Store(true)

	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == sub.id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				break
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub[K]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dispatch delivers every queued change, in publish order, to subscribers in
// subscription order. Callbacks may subscribe, cancel or publish; changes
// published during Dispatch are delivered by the next call.
// Returns the number of changes delivered.
func (h *Hub[K]) Dispatch() int {
	h.queueMu.Lock()
	batch := h.pending
	h.pending = nil
	h.queueMu.Unlock()

	for _, c := range batch {
		h.mu.RLock()
		subs := make([]*subscriber[K], len(h.subs))
		copy(subs, h.subs)
		h.mu.RUnlock()

		for _, sub := range subs {
			if !sub.active.Load() {
				continue
			}
			if sub.keyed && sub.key != c.Key {
				continue
			}
			sub.fn(c)
		}
	}
	return len(batch)
}
