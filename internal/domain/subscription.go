package domain

import "time"

// SubscriptionKeys is the opaque key material a push service needs to
// encrypt payloads for one subscription. Both values are base64url encoded.
type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is the data carried by a local push handle.
// Endpoint uniquely identifies one device and installation.
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// RemoteSubscription is the server-side registration record for an endpoint.
type RemoteSubscription struct {
	ID        string           `json:"id"`
	Endpoint  string           `json:"endpoint"`
	Keys      SubscriptionKeys `json:"keys"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Permission is the user's decision about notifications.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a stored value to a Permission. Unknown values are
// treated as undecided.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

// SubscriptionState is derived from the local registration on every read.
type SubscriptionState int

const (
	StateUnsubscribed SubscriptionState = iota
	StatePending
	StateSubscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case StateSubscribed:
		return "subscribed"
	case StatePending:
		return "pending"
	default:
		return "unsubscribed"
	}
}
