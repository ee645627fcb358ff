// Package live bridges one document-store collection to the rest of the
// application. An Adapter keeps the latest decoded snapshot for the current
// session, re-subscribing whenever the session principal changes, and
// exposes create, update and delete calls that go straight to the store.
package live

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/records"
	"isdanary/backend/internal/session"
)

var ErrSignedOut = errors.New("no signed-in principal")

// MutationError carries the message shown to the user; Cause is only logged.
type MutationError struct {
	Message string
	Cause   error
}

func (e *MutationError) Error() string {
	return e.Message
}

func (e *MutationError) Unwrap() error {
	return e.Cause
}

type Messages struct {
	Load      string
	Create    string
	Update    string
	Delete    string
	SignedOut string
}

type Config[T any] struct {
	Collection  string
	OrderBy     string
	Direction   docstore.Direction
	OwnerScoped bool
	Decode      func(docstore.Record) (T, error)
	ID          func(T) string
	Messages    Messages
	Clock       func() time.Time
}

// Snapshot is what an Adapter exposes to readers. Version increases on every
// replacement and identifies the snapshot for memoisation.
type Snapshot[T any] struct {
	Items   []T
	Loading bool
	Err     string
	Version uint64
}

type Adapter[T any] struct {
	cfg    Config[T]
	store  docstore.Store
	holder *session.Holder

	mu          sync.Mutex
	snap        Snapshot[T]
	gen         uint64
	unsubscribe func()
	closed      bool

	listenerMu    sync.Mutex
	listeners     map[int]func(Snapshot[T])
	nextListener  int
	lastEmitted   uint64
	stopObserving func()
}

func New[T any](store docstore.Store, holder *session.Holder, cfg Config[T]) *Adapter[T] {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	a := &Adapter[T]{
		cfg:       cfg,
		store:     store,
		holder:    holder,
		snap:      Snapshot[T]{Loading: true},
		listeners: make(map[int]func(Snapshot[T])),
	}
	a.stopObserving = holder.Observe(a.onSession)
	a.onSession(holder.State())
	return a
}

func (a *Adapter[T]) Snapshot() Snapshot[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copySnapshot()
}

// Find looks id up in the last received snapshot.
func (a *Adapter[T]) Find(id string) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, item := range a.snap.Items {
		if a.cfg.ID(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Listen registers fn for every later snapshot replacement. Listeners run
// one at a time and must not call Listen or their cancel func.
func (a *Adapter[T]) Listen(fn func(Snapshot[T])) (cancel func()) {
	a.listenerMu.Lock()
	a.nextListener++
	id := a.nextListener
	a.listeners[id] = fn
	a.listenerMu.Unlock()

	return func() {
		a.listenerMu.Lock()
		delete(a.listeners, id)
		a.listenerMu.Unlock()
	}
}

func (a *Adapter[T]) Create(ctx context.Context, fields docstore.Fields) (string, error) {
	principal, ok := a.holder.Principal()
	if !ok {
		return "", &MutationError{Message: a.cfg.Messages.SignedOut, Cause: ErrSignedOut}
	}

	doc := fields.Clone()
	delete(doc, records.FieldOwnerID)
	doc[records.FieldCreatedAt] = a.cfg.Clock().UnixMilli()
	if a.cfg.OwnerScoped {
		doc[records.FieldOwnerID] = principal.ID
	}

	id, err := a.store.Create(ctx, a.cfg.Collection, doc)
	if err != nil {
		log.Printf("[live] error creating %s document: %v", a.cfg.Collection, err)
		return "", &MutationError{Message: a.cfg.Messages.Create, Cause: err}
	}
	return id, nil
}

// Update overwrites the given keys of a document visible in the current
// snapshot. Ownership and creation time cannot be changed.
func (a *Adapter[T]) Update(ctx context.Context, id string, fields docstore.Fields) error {
	if err := a.checkTarget(id, a.cfg.Messages.Update); err != nil {
		return err
	}

	patch := fields.Clone()
	delete(patch, records.FieldOwnerID)
	delete(patch, records.FieldCreatedAt)
	if len(patch) == 0 {
		return nil
	}

	if err := a.store.Update(ctx, a.cfg.Collection, id, patch); err != nil {
		log.Printf("[live] error updating %s/%s: %v", a.cfg.Collection, id, err)
		return &MutationError{Message: a.cfg.Messages.Update, Cause: err}
	}
	return nil
}

func (a *Adapter[T]) Delete(ctx context.Context, id string) error {
	if err := a.checkTarget(id, a.cfg.Messages.Delete); err != nil {
		return err
	}
	if err := a.store.Delete(ctx, a.cfg.Collection, id); err != nil {
		log.Printf("[live] error deleting %s/%s: %v", a.cfg.Collection, id, err)
		return &MutationError{Message: a.cfg.Messages.Delete, Cause: err}
	}
	return nil
}

// Close stops the subscription and detaches from the session holder.
func (a *Adapter[T]) Close() {
	a.stopObserving()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.gen++
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.snap = Snapshot[T]{Version: a.snap.Version + 1}
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (a *Adapter[T]) checkTarget(id string, message string) error {
	if _, ok := a.holder.Principal(); !ok {
		return &MutationError{Message: a.cfg.Messages.SignedOut, Cause: ErrSignedOut}
	}
	if _, ok := a.Find(id); !ok {
		return &MutationError{Message: message, Cause: docstore.ErrNotFound}
	}
	return nil
}

func (a *Adapter[T]) onSession(state session.State) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	previous := a.unsubscribe
	a.unsubscribe = nil

	// Items from the previous principal never survive a session change.
	a.snap = Snapshot[T]{
		Loading: state.Initializing || state.SignedIn(),
		Version: a.snap.Version + 1,
	}
	snap := a.copySnapshot()
	a.mu.Unlock()

	if previous != nil {
		previous()
	}
	a.emit(snap)

	if !state.SignedIn() {
		return
	}

	q := docstore.Query{
		Collection: a.cfg.Collection,
		OrderBy:    a.cfg.OrderBy,
		Direction:  a.cfg.Direction,
	}
	if a.cfg.OwnerScoped {
		q.Where = []docstore.Filter{{Field: records.FieldOwnerID, Value: state.Principal.ID}}
	}

	unsubscribe := a.store.Subscribe(q,
		func(recs []docstore.Record) { a.deliver(gen, recs) },
		func(err error) { a.fail(gen, err) },
	)

	a.mu.Lock()
	if a.gen == gen && !a.closed {
		a.unsubscribe = unsubscribe
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	unsubscribe()
}

func (a *Adapter[T]) deliver(gen uint64, recs []docstore.Record) {
	items := make([]T, 0, len(recs))
	for _, rec := range recs {
		item, err := a.cfg.Decode(rec)
		if err != nil {
			log.Printf("[live] WARN: dropping malformed %s document: %v", a.cfg.Collection, err)
			continue
		}
		items = append(items, item)
	}

	a.mu.Lock()
	if gen != a.gen || a.closed {
		a.mu.Unlock()
		return
	}
	a.snap = Snapshot[T]{Items: items, Version: a.snap.Version + 1}
	snap := a.copySnapshot()
	a.mu.Unlock()

	a.emit(snap)
}

func (a *Adapter[T]) fail(gen uint64, err error) {
	log.Printf("[live] error loading %s: %v", a.cfg.Collection, err)

	a.mu.Lock()
	if gen != a.gen || a.closed {
		a.mu.Unlock()
		return
	}
	a.snap.Loading = false
	a.snap.Err = a.cfg.Messages.Load
	a.snap.Version++
	snap := a.copySnapshot()
	a.mu.Unlock()

	a.emit(snap)
}

func (a *Adapter[T]) emit(snap Snapshot[T]) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	if snap.Version <= a.lastEmitted {
		return
	}
	a.lastEmitted = snap.Version
	for _, fn := range a.listeners {
		fn(snap)
	}
}

func (a *Adapter[T]) copySnapshot() Snapshot[T] {
	out := a.snap
	out.Items = make([]T, len(a.snap.Items))
	copy(out.Items, a.snap.Items)
	return out
}
