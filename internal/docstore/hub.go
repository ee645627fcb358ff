package docstore

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Loader runs a one-shot query against a driver's backing storage.
type Loader func(ctx context.Context, q Query) ([]Record, error)

// Hub fans collection changes out to live subscriptions. Drivers call
// Notify after every committed write; each subscription re-runs its query
// and receives the full result.
type Hub struct {
	mu     sync.Mutex
	load   Loader
	nextID uint64
	subs   map[uint64]*subscription
	closed bool
}

type subscription struct {
	query      Query
	onSnapshot SnapshotFunc
	onError    ErrorFunc

	// deliver serialises load+callback so snapshots arrive in commit order.
	deliver sync.Mutex
	done    atomic.Bool
}

func NewHub(load Loader) *Hub {
	return &Hub{load: load, subs: make(map[uint64]*subscription)}
}

func (h *Hub) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	if onError == nil {
		onError = func(error) {}
	}
	sub := &subscription{query: q, onSnapshot: onSnapshot, onError: onError}

	if err := q.Validate(); err != nil {
		onError(err)
		return func() {}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		onError(ErrClosed)
		return func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	h.refresh(context.Background(), sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.done.Store(true)
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Notify re-delivers every subscription watching collection.
func (h *Hub) Notify(ctx context.Context, collection string) {
	h.mu.Lock()
	targets := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.query.Collection == collection {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		h.refresh(ctx, sub)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscription without notifying it.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		sub.done.Store(true)
		delete(h.subs, id)
	}
	h.closed = true
}

func (h *Hub) refresh(ctx context.Context, sub *subscription) {
	sub.deliver.Lock()
	defer sub.deliver.Unlock()
	if sub.done.Load() {
		return
	}

	records, err := h.load(context.WithoutCancel(ctx), sub.query)
	if sub.done.Load() {
		return
	}
	if err != nil {
		log.Printf("[docstore] WARN: snapshot for %s failed: %v", sub.query.Collection, err)
		sub.onError(err)
		return
	}
	sub.onSnapshot(records)
}
