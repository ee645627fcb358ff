package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/identity"
)

func TestHolderLifecycle(t *testing.T) {
	h := NewHolder()
	require.True(t, h.State().Initializing)

	var seen []State
	cancel := h.Observe(func(s State) { seen = append(seen, s) })

	h.Init(nil)
	h.SignIn(domain.Principal{ID: "u1", Email: "a@b.ph"})
	h.SignIn(domain.Principal{ID: "u1", Email: "a@b.ph"})
	h.SignOut()

	require.Len(t, seen, 3)
	assert.False(t, seen[0].Initializing)
	assert.False(t, seen[0].SignedIn())
	assert.Equal(t, "u1", seen[1].Principal.ID)
	assert.False(t, seen[2].SignedIn())

	cancel()
	h.SignIn(domain.Principal{ID: "u2"})
	assert.Len(t, seen, 3)

	p, ok := h.Principal()
	require.True(t, ok)
	assert.Equal(t, "u2", p.ID)
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	h := NewHolder()
	var order []string
	h.Observe(func(State) { order = append(order, "first") })
	h.Observe(func(State) { order = append(order, "second") })

	h.Init(&domain.Principal{ID: "u1"})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestMessageMapsKnownCodes(t *testing.T) {
	assert.Equal(t, "Invalid email or password.", Message(&identity.Error{Code: identity.CodeWrongPassword}, LoginFallbackMessage))
	assert.Equal(t, "No account found for that email.", Message(&identity.Error{Code: identity.CodeUserNotFound}, LoginFallbackMessage))
	assert.Equal(t, "An account already exists for that email.", Message(&identity.Error{Code: identity.CodeEmailInUse}, SignupFallbackMessage))
	assert.Equal(t, "Password is too weak.", Message(&identity.Error{Code: identity.CodeWeakPassword}, SignupFallbackMessage))
	assert.Equal(t, SignupFallbackMessage, Message(errors.New("boom"), SignupFallbackMessage))
}
