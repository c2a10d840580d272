// Package subscription is the server side of push registration: it keeps
// one record per device endpoint.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

// Backend persists remote subscription records keyed by endpoint.
type Backend interface {
	// Upsert stores rec. When the endpoint is already known the existing ID
	// and CreatedAt are kept and the stored record is returned.
	Upsert(ctx context.Context, rec domain.RemoteSubscription) (domain.RemoteSubscription, error)
	// DeleteSubscription removes the endpoint and reports whether it existed.
	DeleteSubscription(ctx context.Context, endpoint string) (bool, error)
	// GetSubscription returns the record for endpoint, or domain.ErrNotFound.
	GetSubscription(ctx context.Context, endpoint string) (domain.RemoteSubscription, error)
	// CountSubscriptions returns the number of stored records.
	CountSubscriptions(ctx context.Context) (int, error)
}

// ErrInvalidSubscription is returned for malformed register requests.
var ErrInvalidSubscription = errors.New("invalid subscription")

// Registry validates and records push registrations.
type Registry struct {
	backend       Backend
	logger        logger.Logger
	allowInsecure bool
	now           func() time.Time
}

// NewRegistry creates a Registry. allowInsecure accepts http:// endpoints.
func NewRegistry(backend Backend, log logger.Logger, allowInsecure bool) *Registry {
	return &Registry{
		backend:       backend,
		logger:        log,
		allowInsecure: allowInsecure,
		now:           time.Now,
	}
}

// Register records sub. Registering a known endpoint again refreshes its keys.
func (r *Registry) Register(ctx context.Context, sub domain.Subscription) (domain.RemoteSubscription, error) {
	if err := r.validate(sub.Endpoint); err != nil {
		return domain.RemoteSubscription{}, err
	}
	if sub.Keys.P256DH == "" || sub.Keys.Auth == "" {
		return domain.RemoteSubscription{}, fmt.Errorf("%w: keys.p256dh and keys.auth are required", ErrInvalidSubscription)
	}

	now := r.now().UTC()
	stored, err := r.backend.Upsert(ctx, domain.RemoteSubscription{
		ID:        uuid.NewString(),
		Endpoint:  sub.Endpoint,
		Keys:      sub.Keys,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.RemoteSubscription{}, fmt.Errorf("register subscription: %w: %w", domain.ErrStorageUnavailable, err)
	}

	r.logger.Info("push subscription registered",
		logger.String("id", stored.ID),
		logger.String("endpoint_host", endpointHost(sub.Endpoint)))
	return stored, nil
}

// Unregister removes endpoint. Unknown endpoints are not an error.
func (r *Registry) Unregister(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidSubscription)
	}
	existed, err := r.backend.DeleteSubscription(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("unregister subscription: %w: %w", domain.ErrStorageUnavailable, err)
	}
	r.logger.Info("push subscription unregistered",
		logger.String("endpoint_host", endpointHost(endpoint)),
		logger.Bool("existed", existed))
	return nil
}

// Lookup returns the record for endpoint.
func (r *Registry) Lookup(ctx context.Context, endpoint string) (domain.RemoteSubscription, error) {
	return r.backend.GetSubscription(ctx, endpoint)
}

// Count returns the number of registered endpoints.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.backend.CountSubscriptions(ctx)
}

func (r *Registry) validate(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidSubscription)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: endpoint is not an absolute URL", ErrInvalidSubscription)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if r.allowInsecure {
			return nil
		}
	}
	return fmt.Errorf("%w: endpoint scheme %q not allowed", ErrInvalidSubscription, u.Scheme)
}

// endpointHost keeps the per-device token out of the logs.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}
