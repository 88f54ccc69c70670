package core

import (
	"context"
	"time"
)

// Dispatcher hands outbound messages to the external router/transport.
// Implementations: log dispatcher, webhook dispatcher.
type Dispatcher interface {
	// Name returns the identifier of this dispatcher (as used in config).
	Name() string

	// Send delivers msg. Failures should be returned as DeliveryError so callers can retry.
	Send(ctx context.Context, msg Message) error
}

// ContentSource provides the protected content delivered on release.
type ContentSource interface {
	Load(ctx context.Context) ([]byte, error)
}

// InstanceStore persists workflow instances.
// Implementations must be safe for concurrent use.
type InstanceStore interface {
	// Create stores a new instance. The instance's Version is stored as given.
	Create(ctx context.Context, inst *Instance) error

	// Get returns a copy of the stored instance or ErrInstanceNotFound.
	Get(ctx context.Context, id string) (*Instance, error)

	// CompareAndSwap replaces the stored instance if its version still equals expected.
	// On success inst.Version is expected+1. Returns ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, inst *Instance, expected int64) error

	// ListDue returns non-terminal instances whose ResumeAt is not after now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Instance, error)

	// List returns instances matching filter, newest first.
	List(ctx context.Context, filter InstanceFilter) ([]*Instance, error)

	// FindActive returns the newest non-terminal instance for identity, or ErrInstanceNotFound.
	FindActive(ctx context.Context, identity string) (*Instance, error)
}
