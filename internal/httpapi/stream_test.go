package httpapi

import (
	"testing"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/session"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestWatchSignOutSeesEarlierSignOut(t *testing.T) {
	holder := session.NewHolder()
	holder.Init(&domain.Principal{ID: "usr-1", Email: "juan@isdanary.ph"})
	holder.SignOut()

	signedOut, stop := watchSignOut(holder)
	defer stop()

	if !closed(signedOut) {
		t.Fatalf("a sign-out before watching must close the channel")
	}
}

func TestWatchSignOutFollowsLaterSignOut(t *testing.T) {
	holder := session.NewHolder()
	signedOut, stop := watchSignOut(holder)
	defer stop()

	if closed(signedOut) {
		t.Fatalf("an initializing session is not signed out")
	}
	holder.Init(&domain.Principal{ID: "usr-1", Email: "juan@isdanary.ph"})
	if closed(signedOut) {
		t.Fatalf("a signed-in session is not signed out")
	}
	holder.SignOut()
	holder.SignOut()
	if !closed(signedOut) {
		t.Fatalf("expected sign-out to close the channel")
	}
}
