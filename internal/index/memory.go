package index

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// MemoryIndex keeps bookmarks and remote subscriptions in process memory.
// It backs the "memory" storage mode and the tests.
type MemoryIndex struct {
	mu            sync.RWMutex
	bookmarks     map[string]domain.Bookmark // ID -> Bookmark
	order         []string                   // bookmark IDs in insertion order
	subscriptions map[string]domain.RemoteSubscription
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		bookmarks:     make(map[string]domain.Bookmark),
		subscriptions: make(map[string]domain.RemoteSubscription),
	}
}

// ─────────────────────────────────────────────────────────────────
// Bookmark methods
// ─────────────────────────────────────────────────────────────────

// List returns all bookmarks in insertion order
func (idx *MemoryIndex) List(_ context.Context) ([]domain.Bookmark, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bookmarks := make([]domain.Bookmark, 0, len(idx.order))
	for _, id := range idx.order {
		bookmarks = append(bookmarks, idx.bookmarks[id])
	}
	return bookmarks, nil
}

// Get retrieves a bookmark by ID
func (idx *MemoryIndex) Get(_ context.Context, id string) (domain.Bookmark, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	b, ok := idx.bookmarks[id]
	if !ok {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	return b, nil
}

// Put adds or replaces a bookmark. A replaced bookmark keeps its position.
func (idx *MemoryIndex) Put(_ context.Context, b domain.Bookmark) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.bookmarks[b.ID]; !ok {
		idx.order = append(idx.order, b.ID)
	}
	idx.bookmarks[b.ID] = b
	return nil
}

// PutIfAbsent adds a bookmark only if its ID is unused
func (idx *MemoryIndex) PutIfAbsent(_ context.Context, b domain.Bookmark) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.bookmarks[b.ID]; ok {
		return false, nil
	}
	idx.order = append(idx.order, b.ID)
	idx.bookmarks[b.ID] = b
	return true, nil
}

// Delete removes a bookmark from the index
func (idx *MemoryIndex) Delete(_ context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.bookmarks[id]; !ok {
		return nil
	}
	delete(idx.bookmarks, id)
	for i, v := range idx.order {
		if v == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return nil
}

// BookmarkCount returns the number of bookmarks in the index
func (idx *MemoryIndex) BookmarkCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.bookmarks)
}

// ─────────────────────────────────────────────────────────────────
// Subscription methods
// ─────────────────────────────────────────────────────────────────

// Upsert stores a subscription, keeping ID and CreatedAt of a known endpoint
func (idx *MemoryIndex) Upsert(_ context.Context, rec domain.RemoteSubscription) (domain.RemoteSubscription, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.subscriptions[rec.Endpoint]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	idx.subscriptions[rec.Endpoint] = rec
	return rec, nil
}

// DeleteSubscription removes an endpoint and reports whether it was known
func (idx *MemoryIndex) DeleteSubscription(_ context.Context, endpoint string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, ok := idx.subscriptions[endpoint]
	delete(idx.subscriptions, endpoint)
	return ok, nil
}

// GetSubscription retrieves a subscription by endpoint
func (idx *MemoryIndex) GetSubscription(_ context.Context, endpoint string) (domain.RemoteSubscription, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.subscriptions[endpoint]
	if !ok {
		return domain.RemoteSubscription{}, domain.ErrNotFound
	}
	return rec, nil
}

// CountSubscriptions returns the number of registered endpoints
func (idx *MemoryIndex) CountSubscriptions(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.subscriptions), nil
}
