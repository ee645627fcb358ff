package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

func (q Query) Matches(r Record) bool {
	for _, f := range q.Where {
		if !equalValues(r.Fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// Apply filters records by q.Where and orders them by q.OrderBy. Records
// with equal sort keys keep a stable order by ID.
func Apply(q Query, records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	Sort(q, out)
	return out
}

func Sort(q Query, records []Record) {
	if q.OrderBy == "" {
		sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		c := compareValues(records[i].Fields[q.OrderBy], records[j].Fields[q.OrderBy])
		if c == 0 {
			return records[i].ID < records[j].ID
		}
		if q.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
}

func equalValues(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		return an == bn
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareValues(a, b any) int {
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	// Numbers sort ahead of everything else, missing values first of all.
	if aok != bok {
		if aok {
			return -1
		}
		return 1
	}
	as, bs := stringOf(a), stringOf(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case Timestamp:
		return float64(n.Millis()), true
	case time.Time:
		return float64(n.UnixMilli()), true
	}
	return 0, false
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	}
	return fmt.Sprint(v)
}
