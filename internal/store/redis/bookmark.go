package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// addIfAbsent writes the record and indexes it only when the key is unused.
// KEYS[1] = bookmark key, KEYS[2] = index; ARGV = json, score, id
var addIfAbsent = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
	redis.call('ZADD', KEYS[2], 'NX', ARGV[2], ARGV[3])
	return 1
end
return 0
`)

// Put stores a bookmark, replacing any existing record with the same ID
func (s *Store) Put(ctx context.Context, b domain.Bookmark) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.Bookmark(b.ID), data, 0)
		// NX keeps the original insertion position on replace
		pipe.ZAddNX(ctx, s.keys.AllBookmarks(), redis.Z{Score: insertionScore(), Member: b.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// PutIfAbsent stores a bookmark only if its ID is unused
func (s *Store) PutIfAbsent(ctx context.Context, b domain.Bookmark) (bool, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	added, err := addIfAbsent.Run(ctx, s.client,
		[]string{s.keys.Bookmark(b.ID), s.keys.AllBookmarks()},
		data, insertionScore(), b.ID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return added == 1, nil
}

// Get retrieves a bookmark by ID
func (s *Store) Get(ctx context.Context, id string) (domain.Bookmark, error) {
	data, err := s.client.Get(ctx, s.keys.Bookmark(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bookmark{}, domain.ErrNotFound
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return b, nil
}

// List retrieves all bookmarks in insertion order
func (s *Store) List(ctx context.Context) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRange(ctx, s.keys.AllBookmarks(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.Bookmark(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]domain.Bookmark, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a record
			continue
		}
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			// Skip records that can't be decoded
			continue
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, nil
}

// Delete removes a bookmark
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.Bookmark(id))
		pipe.ZRem(ctx, s.keys.AllBookmarks(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

func insertionScore() float64 {
	return float64(time.Now().UnixMicro())
}
