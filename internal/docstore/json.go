package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MarshalFields encodes a document for drivers that persist JSON. Time
// values are flattened to epoch milliseconds.
func MarshalFields(fields Fields) ([]byte, error) {
	flat := make(map[string]any, len(fields))
	for k, v := range fields {
		if !ValidField(k) {
			return nil, fmt.Errorf("field %q: %w", k, ErrInvalidDocument)
		}
		switch t := v.(type) {
		case Timestamp:
			flat[k] = t.Millis()
		case time.Time:
			flat[k] = t.UnixMilli()
		default:
			flat[k] = v
		}
	}
	return json.Marshal(flat)
}

// UnmarshalFields decodes a stored JSON document. Numbers stay json.Number
// so integer milliseconds survive untouched.
func UnmarshalFields(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}
