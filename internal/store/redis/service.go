package redis

import (
	"github.com/redis/go-redis/v9"
)

// Store implements bookmark.Backend and subscription.Backend on Redis
type Store struct {
	client *redis.Client
	keys   Keys
}

// NewStore creates a Redis store whose keys live under namespace
func NewStore(client *redis.Client, namespace string) *Store {
	return &Store{
		client: client,
		keys:   NewKeys(namespace),
	}
}
