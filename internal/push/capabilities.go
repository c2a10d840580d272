// Package push drives the push subscription state machine. The platform
// pieces it talks to (permission prompt, device registration, the remote
// subscription endpoint) are passed in as capabilities.
package push

import (
	"context"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// PermissionGate reads and requests the notification permission.
type PermissionGate interface {
	// Permission returns the current decision without prompting.
	Permission(ctx context.Context) (domain.Permission, error)
	// Request prompts the user. PermissionDefault means the prompt was
	// dismissed without a decision.
	Request(ctx context.Context) (domain.Permission, error)
}

// RegistrationLocator finds the active device registration.
type RegistrationLocator interface {
	// Registration returns domain.ErrRegistrationMissing when there is none.
	Registration(ctx context.Context) (Registration, error)
}

// Registration is the local registration that push handles are created on.
type Registration interface {
	// Subscription returns the current handle, or nil when there is none.
	Subscription(ctx context.Context) (Handle, error)
	// Subscribe creates a new handle.
	Subscribe(ctx context.Context, opts SubscribeOptions) (Handle, error)
}

// SubscribeOptions are passed to Registration.Subscribe.
type SubscribeOptions struct {
	UserVisibleOnly      bool
	ApplicationServerKey []byte
}

// Handle is one local push subscription.
type Handle interface {
	Subscription() domain.Subscription
	// Unsubscribe destroys the handle and reports whether it was revoked.
	Unsubscribe(ctx context.Context) (bool, error)
}

// Remote is the server side subscription endpoint.
type Remote interface {
	Subscribe(ctx context.Context, sub domain.Subscription) error
	Unsubscribe(ctx context.Context, endpoint string) error
}
