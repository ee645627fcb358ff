// Package docstore defines the contract of the external document store the
// application sits on: ordered live subscriptions over a collection plus
// create, update and delete by key. Drivers live in the memory, postgres and
// sqlite subpackages.
package docstore

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidDocument = errors.New("invalid document")
	ErrClosed          = errors.New("document store closed")
)

// Fields is the loosely typed payload of one document.
type Fields map[string]any

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type Record struct {
	ID     string
	Fields Fields
}

// Timestamp is the store-native time value. Drivers may hand it back in
// place of a raw millisecond number.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

func (t Timestamp) Millis() int64 {
	return t.Seconds*1000 + int64(t.Nanos)/int64(time.Millisecond)
}

func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos))
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Direction  Direction
}

type SnapshotFunc func(records []Record)

type ErrorFunc func(err error)

// Store is implemented by every driver.
//
// Subscribe delivers the full ordered result of q on registration and again
// after every write to q.Collection. The returned function tears the
// subscription down: no delivery starts after it returns and a load still
// in flight is discarded, but a callback already running may finish.
type Store interface {
	Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (unsubscribe func())
	List(ctx context.Context, q Query) ([]Record, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection string, id string, fields Fields) error
	Delete(ctx context.Context, collection string, id string) error
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField reports whether name is usable as a top-level field name in
// filters and ordering.
func ValidField(name string) bool {
	return fieldNamePattern.MatchString(name)
}

func (q Query) Validate() error {
	if q.Collection == "" || !ValidField(q.Collection) {
		return ErrInvalidDocument
	}
	if q.OrderBy != "" && !ValidField(q.OrderBy) {
		return ErrInvalidDocument
	}
	for _, f := range q.Where {
		if !ValidField(f.Field) {
			return ErrInvalidDocument
		}
	}
	return nil
}
