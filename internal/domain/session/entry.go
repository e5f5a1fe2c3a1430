// Package session implements the request-interception layer that decides, per
// incoming request, whether to allow, redirect, or strip session state without
// calling the identity provider on every request.
package session

import (
	"context"
	"errors"
	"time"
)

// Entry is a cached verification outcome, keyed by the raw session token.
// Timestamp is updated on every cache write; Valid always reflects an outcome
// that was actually observed, never an assumed one.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Valid        bool      `json:"valid"`
	UserID       string    `json:"user_id,omitempty"`
	LastVerified time.Time `json:"last_verified,omitempty"`
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Store is the injected cache service backing the gateway.
type Store interface {
	Get(token string) (Entry, bool)
	Set(token string, entry Entry)
	// Purge removes entries older than olderThan, then evicts oldest-first
	// until at most maxEntries remain. Returns the number removed.
	Purge(olderThan time.Time, maxEntries int) int
	Len() int
}

// ErrTokenInvalid marks a verification failure that is terminal for the token,
// as opposed to a transient provider error.
var ErrTokenInvalid = errors.New("session token invalid")

// Verifier checks a session token against the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// ProfileChecker reports whether an authenticated user already has a backend
// profile, driving login/onboarding routing.
type ProfileChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
