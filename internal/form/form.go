// Package form validates user submissions before anything reaches the
// document store. Validation failures are *ValidationError values naming the
// offending field; they are never sent to the store.
package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Number is a numeric form field. It accepts a JSON number, a numeric string
// or null. Blank input reads as zero; anything unparsable reads as NaN so the
// validator can reject it with the field's own message.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*n = 0
		return nil
	}

	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
	}
	*n = ParseNumber(text)
	return nil
}

// ParseNumber reads a submitted form value with the same rules as JSON input.
func ParseNumber(raw string) Number {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(v, 0) {
		return Number(math.NaN())
	}
	return Number(v)
}

func (n Number) Float() float64 {
	return float64(n)
}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

func nonNegative(n Number) bool {
	v := float64(n)
	return !math.IsNaN(v) && v >= 0
}

type State string

const (
	StateIdle       State = "idle"
	StateEditing    State = "editing"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateError      State = "error"
)

var ErrBusy = errors.New("a submission is already in progress")

// Machine tracks one form's submission lifecycle:
// idle|editing → validating → submitting → idle|error.
type Machine struct {
	mu      sync.Mutex
	state   State
	message string
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() (State, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.message
}

// Edit opens the form for a pre-selected entity or a fresh draft.
func (m *Machine) Edit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return
	}
	m.state = StateEditing
	m.message = ""
}

// Submit runs validate then, if it passes, submit. Only one submission runs
// at a time; a second call while submitting returns ErrBusy.
func (m *Machine) Submit(validate func() error, submit func() error) error {
	m.mu.Lock()
	if m.state == StateSubmitting || m.state == StateValidating {
		m.mu.Unlock()
		return ErrBusy
	}
	m.state = StateValidating
	m.message = ""
	m.mu.Unlock()

	if err := validate(); err != nil {
		m.settle(err)
		return err
	}

	m.mu.Lock()
	m.state = StateSubmitting
	m.mu.Unlock()

	err := submit()
	m.settle(err)
	return err
}

func (m *Machine) settle(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateError
		m.message = err.Error()
		return
	}
	m.state = StateIdle
	m.message = ""
}
