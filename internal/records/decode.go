// Package records converts between raw store documents and typed domain
// entities. Decoding is strict about types but lenient about absence: a
// missing field takes its zero default, a field of the wrong type rejects
// the whole document.
package records

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"isdanary/backend/internal/docstore"
)

const (
	FieldOwnerID   = "ownerId"
	FieldCreatedAt = "createdAt"
)

// DecodeError names the offending field of a rejected document.
type DecodeError struct {
	ID     string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("document %s: field %s: %s", e.ID, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return docstore.ErrInvalidDocument
}

type reader struct {
	rec docstore.Record
	err error
}

func (r *reader) fail(field string, format string, args ...any) {
	if r.err == nil {
		r.err = &DecodeError{ID: r.rec.ID, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
}

func (r *reader) string(field string) string {
	switch v := r.rec.Fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		r.fail(field, "expected string, got %T", v)
		return ""
	}
}

func (r *reader) number(field string) float64 {
	n, ok := r.optionalNumber(field)
	if !ok {
		return 0
	}
	return n
}

func (r *reader) optionalNumber(field string) (float64, bool) {
	raw, present := r.rec.Fields[field]
	if !present || raw == nil {
		return 0, false
	}
	n, err := toFloat(raw)
	if err != nil {
		r.fail(field, "%v", err)
		return 0, false
	}
	return n, true
}

func (r *reader) integer(field string) int {
	n := r.number(field)
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		r.fail(field, "expected integer, got %v", n)
		return 0
	}
	return int(n)
}

func (r *reader) millis(field string) int64 {
	raw, present := r.rec.Fields[field]
	if !present || raw == nil {
		return 0
	}
	ms, err := Millis(raw)
	if err != nil {
		r.fail(field, "%v", err)
		return 0
	}
	return ms
}

// Millis accepts the store-native timestamp, a time.Time, or a raw number
// of milliseconds, and returns epoch milliseconds.
func Millis(v any) (int64, error) {
	switch t := v.(type) {
	case docstore.Timestamp:
		return t.Millis(), nil
	case *docstore.Timestamp:
		if t == nil {
			return 0, nil
		}
		return t.Millis(), nil
	case time.Time:
		return t.UnixMilli(), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n.String())
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected finite number, got %v", f)
	}
	return f, nil
}
