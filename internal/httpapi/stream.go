package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/live"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/session"
	"isdanary/backend/internal/workspace"
)

const streamHeartbeat = 25 * time.Second

type streamSnapshot[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Version uint64 `json:"version"`
}

func toStream[T any](s live.Snapshot[T]) streamSnapshot[T] {
	return streamSnapshot[T]{Items: s.Items, Loading: s.Loading, Error: s.Err, Version: s.Version}
}

// latest holds only the newest payload; a slow client skips intermediate
// snapshots because each one supersedes the previous.
type latest struct {
	mu      sync.Mutex
	payload any
	notify  chan struct{}
}

func newLatest() *latest {
	return &latest{notify: make(chan struct{}, 1)}
}

func (l *latest) put(v any) {
	l.mu.Lock()
	l.payload = v
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latest) take() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.payload
	l.payload = nil
	return v
}

// subscribeStream wires the requested collection to sink and returns the
// initial payload.
func subscribeStream(ws *workspace.Workspace, collection string, sink *latest) (initial any, cancel func(), err error) {
	switch collection {
	case "products":
		cancel = ws.Products.Listen(func(s live.Snapshot[domain.Product]) { sink.put(toStream(s)) })
		return toStream(ws.Products.Snapshot()), cancel, nil
	case "sales":
		cancel = ws.Sales.Listen(func(s live.Snapshot[domain.Sale]) { sink.put(toStream(s)) })
		return toStream(ws.Sales.Snapshot()), cancel, nil
	case "expenses":
		cancel = ws.Expenses.Listen(func(s live.Snapshot[domain.Expense]) { sink.put(toStream(s)) })
		return toStream(ws.Expenses.Snapshot()), cancel, nil
	case "dashboard":
		cancel = ws.Board.Listen(func(d metrics.Dashboard) { sink.put(d) })
		return ws.Board.Current(), cancel, nil
	}
	return nil, nil, errors.New("collection must be products, sales, expenses or dashboard")
}

// watchSignOut returns a channel closed once the holder is signed out,
// including a sign-out that happened before the call.
func watchSignOut(holder *session.Holder) (<-chan struct{}, func()) {
	signedOut := make(chan struct{})
	var once sync.Once
	check := func(s session.State) {
		if !s.Initializing && !s.SignedIn() {
			once.Do(func() { close(signedOut) })
		}
	}
	stop := holder.Observe(check)
	check(holder.State())
	return signedOut, stop
}

func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	ws, err := a.service.Workspace(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	signedOut, stopWatching := watchSignOut(ws.Session)
	defer stopWatching()

	sink := newLatest()
	initial, cancel, err := subscribeStream(ws, r.URL.Query().Get("collection"), sink)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rc, "snapshot", initial); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-signedOut:
			_ = writeEvent(w, rc, "signout", map[string]any{})
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-sink.notify:
			payload := sink.take()
			if payload == nil {
				continue
			}
			if err := writeEvent(w, rc, "snapshot", payload); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return rc.Flush()
}
