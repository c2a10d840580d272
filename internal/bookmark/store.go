// Package bookmark holds the single bookmark collection contract used by
// every caller (HTTP API, CLI, seeder), independent of where records live.
package bookmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

// Backend is a persistence layer for bookmarks. Implementations must be
// safe for concurrent use and return records in a stable order.
type Backend interface {
	// List returns every stored record.
	List(ctx context.Context) ([]domain.Bookmark, error)
	// Get returns the record for id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Bookmark, error)
	// Put stores b, replacing any record with the same id.
	Put(ctx context.Context, b domain.Bookmark) error
	// PutIfAbsent stores b only if its id is unused and reports whether it did.
	PutIfAbsent(ctx context.Context, b domain.Bookmark) (bool, error)
	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}

// Store applies the collection semantics on top of a Backend: reads never
// fail, writes return errors wrapping domain.ErrStorageUnavailable.
type Store struct {
	backend Backend
	logger  logger.Logger
}

// NewStore wraps backend.
func NewStore(backend Backend, log logger.Logger) *Store {
	return &Store{backend: backend, logger: log}
}

// GetAll returns all bookmarks. Storage errors and corrupt data yield an
// empty slice.
func (s *Store) GetAll(ctx context.Context) []domain.Bookmark {
	bookmarks, err := s.backend.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list bookmarks, returning empty collection",
			logger.Error(err))
		return []domain.Bookmark{}
	}
	if bookmarks == nil {
		return []domain.Bookmark{}
	}
	return bookmarks
}

// Save upserts b by id.
func (s *Store) Save(ctx context.Context, b domain.Bookmark) error {
	if b.ID == "" {
		return domain.ErrMissingID
	}
	if err := s.backend.Put(ctx, b); err != nil {
		return storageError("save", b.ID, err)
	}
	s.logger.Debug("bookmark saved", logger.String("id", b.ID))
	return nil
}

// Add stores b unless a bookmark with the same id already exists, in which
// case the stored record is left untouched. It reports whether b was written.
func (s *Store) Add(ctx context.Context, b domain.Bookmark) (bool, error) {
	if b.ID == "" {
		return false, domain.ErrMissingID
	}
	added, err := s.backend.PutIfAbsent(ctx, b)
	if err != nil {
		return false, storageError("add", b.ID, err)
	}
	s.logger.Debug("bookmark add",
		logger.String("id", b.ID),
		logger.Bool("added", added))
	return added, nil
}

// Remove deletes the bookmark with id. Absent ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return storageError("remove", id, err)
	}
	s.logger.Debug("bookmark removed", logger.String("id", id))
	return nil
}

// IsBookmarked reports whether id is in the collection. Lookup errors
// count as absent.
func (s *Store) IsBookmarked(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	_, err := s.backend.Get(ctx, id)
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("bookmark lookup failed",
			logger.String("id", id),
			logger.Error(err))
	}
	return false
}

// Search ranks the collection against query. An empty query returns the
// whole collection unranked.
func (s *Store) Search(ctx context.Context, query string) []domain.Bookmark {
	all := s.GetAll(ctx)
	if query == "" {
		return all
	}
	candidates := domain.RankBookmarks(query, all)
	out := make([]domain.Bookmark, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Bookmark)
	}
	return out
}

func storageError(op, id string, err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return fmt.Errorf("%s bookmark %s: %w", op, id, err)
	}
	return fmt.Errorf("%s bookmark %s: %w: %w", op, id, domain.ErrStorageUnavailable, err)
}
