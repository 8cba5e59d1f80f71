package chat

import (
	"context"

	"github.com/pkg/errors"
)

var ErrConnClosed = errors.New("connection closed")

// Handle is one live client connection.
type Handle interface {
	ID() string
	// UserID is the claimed identity; empty for anonymous connections.
	UserID() string
	// Push queues ev for delivery. It returns once ev is queued, ctx is done,
	// or the handle is closed.
	Push(ctx context.Context, ev Event) error
	// Close is idempotent and cancels pending pushes.
	Close()
	Closed() bool
	Done() <-chan struct{}
}

const anonymousSentinel = "undefined"

// IsRegistrable reports whether a handshake user id claim names a user.
func IsRegistrable(userID string) bool {
	return userID != "" && userID != anonymousSentinel
}
