package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FilePreferences keeps preferences in a YAML document keyed by principal.
// The whole file is rewritten on every Set.
type FilePreferences struct {
	path string

	mu     sync.Mutex
	values map[string]map[string]string
}

func OpenFilePreferences(path string) (*FilePreferences, error) {
	f := &FilePreferences{path: path, values: make(map[string]map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f.values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse preferences file: %w", err)
	}
	if f.values == nil {
		f.values = make(map[string]map[string]string)
	}
	return f, nil
}

func (f *FilePreferences) Get(_ context.Context, principalID string, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[principalID][key]
	return v, ok, nil
}

func (f *FilePreferences) Set(_ context.Context, principalID string, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefs, ok := f.values[principalID]
	if !ok {
		prefs = make(map[string]string)
		f.values[principalID] = prefs
	}
	previous, had := prefs[key]
	prefs[key] = value

	if err := f.flush(); err != nil {
		if had {
			prefs[key] = previous
		} else {
			delete(prefs, key)
		}
		return err
	}
	return nil
}

func (f *FilePreferences) flush() error {
	data, err := yaml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
