// Package session holds the current principal of one workspace and tells
// interested components when it changes.
//
// Lifecycle: a Holder starts out initializing. Init resolves it with the
// principal known at startup (or none). SignIn and SignOut replace the
// principal afterwards. Observers run synchronously, in registration order,
// before the call that changed the principal returns.
package session

import (
	"sync"

	"isdanary/backend/internal/domain"
)

type State struct {
	Principal    *domain.Principal
	Initializing bool
}

func (s State) SignedIn() bool {
	return s.Principal != nil
}

type Holder struct {
	// change serialises state transitions together with their fan-out.
	change sync.Mutex

	mu        sync.RWMutex
	state     State
	nextID    int
	observers map[int]func(State)
	order     []int
}

func NewHolder() *Holder {
	return &Holder{
		state:     State{Initializing: true},
		observers: make(map[int]func(State)),
	}
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyState(h.state)
}

func (h *Holder) Principal() (domain.Principal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state.Principal == nil {
		return domain.Principal{}, false
	}
	return *h.state.Principal, true
}

// Init ends the initializing phase. A nil principal means nobody is signed in.
func (h *Holder) Init(principal *domain.Principal) {
	h.set(State{Principal: clonePrincipal(principal)})
}

func (h *Holder) SignIn(principal domain.Principal) {
	h.set(State{Principal: &principal})
}

func (h *Holder) SignOut() {
	h.set(State{})
}

// Observe registers fn for every later state change. It does not replay the
// current state.
func (h *Holder) Observe(fn func(State)) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.observers[id] = fn
	h.order = append(h.order, id)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.observers, id)
			for i, oid := range h.order {
				if oid == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (h *Holder) set(next State) {
	h.change.Lock()
	defer h.change.Unlock()

	h.mu.Lock()
	prev := h.state
	h.state = next
	fns := make([]func(State), 0, len(h.order))
	for _, id := range h.order {
		fns = append(fns, h.observers[id])
	}
	h.mu.Unlock()

	if samePrincipal(prev.Principal, next.Principal) && prev.Initializing == next.Initializing {
		return
	}
	for _, fn := range fns {
		fn(copyState(next))
	}
}

func samePrincipal(a, b *domain.Principal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePrincipal(p *domain.Principal) *domain.Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func copyState(s State) State {
	return State{Principal: clonePrincipal(s.Principal), Initializing: s.Initializing}
}
