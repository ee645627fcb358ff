package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/xid"
)

// Store keeps every collection in process memory. It converts time.Time
// values to docstore.Timestamp on write, the way a hosted document store
// hands back its native time type.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Fields
	hub         *docstore.Hub
}

func New() *Store {
	s := &Store{collections: make(map[string]map[string]docstore.Fields)}
	s.hub = docstore.NewHub(s.List)
	return s
}

func (s *Store) Subscribe(q docstore.Query, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) func() {
	return s.hub.Subscribe(q, onSnapshot, onError)
}

func (s *Store) List(_ context.Context, q docstore.Query) ([]docstore.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs := s.collections[q.Collection]
	records := make([]docstore.Record, 0, len(docs))
	for id, fields := range docs {
		records = append(records, docstore.Record{ID: id, Fields: fields.Clone()})
	}
	s.mu.RUnlock()

	return docstore.Apply(q, records), nil
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if strings.TrimSpace(collection) == "" || !docstore.ValidField(collection) {
		return "", docstore.ErrInvalidDocument
	}
	id := xid.New("")

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]docstore.Fields)
		s.collections[collection] = docs
	}
	docs[id] = normalize(fields)
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection string, id string, fields docstore.Fields) error {
	s.mu.Lock()
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	merged := doc.Clone()
	for k, v := range normalize(fields) {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func normalize(fields docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			out[k] = docstore.TimestampOf(t)
			continue
		}
		out[k] = v
	}
	return out
}
