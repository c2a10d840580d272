package redis

import (
	"crypto/sha256"
	"encoding/hex"
)

// Keys builds every Redis key under one namespace.
type Keys struct {
	namespace string
}

// NewKeys returns key helpers for namespace (ex: "storyshelf").
func NewKeys(namespace string) Keys {
	return Keys{namespace: namespace}
}

// Bookmark returns the key holding one bookmark's JSON
func (k Keys) Bookmark(id string) string {
	return k.namespace + ":bookmark:" + id
}

// AllBookmarks returns the sorted set of bookmark IDs, scored by insertion time
func (k Keys) AllBookmarks() string {
	return k.namespace + ":bookmarks:all"
}

// Subscription returns the key holding one remote subscription's JSON.
// Endpoints are hashed since they are long URLs.
func (k Keys) Subscription(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return k.namespace + ":subscription:" + hex.EncodeToString(sum[:])
}

// AllSubscriptions returns the set of subscription keys
func (k Keys) AllSubscriptions() string {
	return k.namespace + ":subscriptions:all"
}
