// Package theme persists each principal's light/dark choice.
package theme

import (
	"context"
	"errors"
	"log"

	"isdanary/backend/internal/cache"
	"isdanary/backend/internal/domain"
)

const (
	StorageKey = "isdanary-theme"
	Default    = domain.ThemeDark
)

var ErrInvalidTheme = errors.New("theme must be light or dark")

type Service struct {
	prefs cache.PreferenceStore
}

func New(prefs cache.PreferenceStore) *Service {
	if prefs == nil {
		prefs = cache.NewMemoryPreferences()
	}
	return &Service{prefs: prefs}
}

// Get returns the stored theme. A missing, unreadable or unknown value reads
// as the default.
func (s *Service) Get(ctx context.Context, principalID string) domain.Theme {
	raw, ok, err := s.prefs.Get(ctx, principalID, StorageKey)
	if err != nil {
		log.Printf("[theme] WARN: reading preference failed: %v", err)
		return Default
	}
	if t := domain.Theme(raw); ok && t.Valid() {
		return t
	}
	return Default
}

func (s *Service) Set(ctx context.Context, principalID string, t domain.Theme) (domain.Theme, error) {
	if !t.Valid() {
		return "", ErrInvalidTheme
	}
	if err := s.prefs.Set(ctx, principalID, StorageKey, string(t)); err != nil {
		return "", err
	}
	return t, nil
}

func (s *Service) Toggle(ctx context.Context, principalID string) (domain.Theme, error) {
	return s.Set(ctx, principalID, s.Get(ctx, principalID).Toggled())
}
