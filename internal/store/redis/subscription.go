package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

const maxUpsertRetries = 5

// Upsert stores a subscription. A known endpoint keeps its ID and CreatedAt.
func (s *Store) Upsert(ctx context.Context, rec domain.RemoteSubscription) (domain.RemoteSubscription, error) {
	key := s.keys.Subscription(rec.Endpoint)

	var stored domain.RemoteSubscription
	txf := func(tx *redis.Tx) error {
		stored = rec
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var existing domain.RemoteSubscription
			if err := json.Unmarshal(data, &existing); err == nil {
				stored.ID = existing.ID
				stored.CreatedAt = existing.CreatedAt
			}
		case !errors.Is(err, redis.Nil):
			return err
		}

		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal subscription: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.keys.AllSubscriptions(), key)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpsertRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Concurrent write on the same endpoint, retry
			continue
		}
		return domain.RemoteSubscription{}, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return domain.RemoteSubscription{}, fmt.Errorf("failed to upsert subscription: too many concurrent writes")
}

// DeleteSubscription removes an endpoint and reports whether it was known
func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) (bool, error) {
	key := s.keys.Subscription(endpoint)

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, key)
		pipe.SRem(ctx, s.keys.AllSubscriptions(), key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	return del.Val() > 0, nil
}

// GetSubscription retrieves a subscription by endpoint
func (s *Store) GetSubscription(ctx context.Context, endpoint string) (domain.RemoteSubscription, error) {
	data, err := s.client.Get(ctx, s.keys.Subscription(endpoint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RemoteSubscription{}, domain.ErrNotFound
		}
		return domain.RemoteSubscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	var rec domain.RemoteSubscription
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.RemoteSubscription{}, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return rec, nil
}

// CountSubscriptions returns the number of registered endpoints
func (s *Store) CountSubscriptions(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.keys.AllSubscriptions()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return int(n), nil
}
