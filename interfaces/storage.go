package interfaces

import (
	"context"
	"errors"
)

// ErrSessionKeyNotFound is returned by a SessionKeyStore when nothing is stored
// under the requested name.
var ErrSessionKeyNotFound = errors.New("session key not found")

// ErrStoreUnavailable is returned when a store backend cannot be reached.
var ErrStoreUnavailable = errors.New("storage backend unavailable")

// SessionKeyStore persists auth contexts (a session key pair plus its delegation)
// between CLI invocations.
type SessionKeyStore interface {
	Load(ctx context.Context, name string) (*AuthContext, error)
	Store(ctx context.Context, name string, auth *AuthContext) error

	// Available reports whether the backend can currently be reached.
	Available(ctx context.Context) bool

	// Name returns a short description of the backend for logging.
	Name() string
}

// ActionCodeStore publishes and fetches Lit Action source code by content id.
type ActionCodeStore interface {
	Publish(ctx context.Context, code string) (string, error)
	Fetch(ctx context.Context, id string) (string, error)
}
