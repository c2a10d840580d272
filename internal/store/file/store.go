package file

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// SubscriptionsFile is the name of the subscription collection, created
// next to the bookmark file.
const SubscriptionsFile = "subscriptions.json"

// Store implements bookmark.Backend and subscription.Backend on JSON files.
// Every operation reads the whole file, so it suits small collections.
type Store struct {
	mu            sync.Mutex
	bookmarks     *jsonFile[domain.Bookmark]
	subscriptions *jsonFile[domain.RemoteSubscription]
}

// New returns a store keeping bookmarks in path. Nothing is created until
// the first write.
func New(path string) *Store {
	return &Store{
		bookmarks:     &jsonFile[domain.Bookmark]{path: path},
		subscriptions: &jsonFile[domain.RemoteSubscription]{path: filepath.Join(filepath.Dir(path), SubscriptionsFile)},
	}
}

// ─────────────────────────────────────────────────────────────────
// Bookmarks
// ─────────────────────────────────────────────────────────────────

func (s *Store) List(_ context.Context) ([]domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bookmarks.read()
}

func (s *Store) Get(_ context.Context, id string) (domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.bookmarks.read()
	if err != nil {
		return domain.Bookmark{}, err
	}
	for _, b := range records {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bookmark{}, domain.ErrNotFound
}

func (s *Store) Put(_ context.Context, b domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.bookmarks.load()
	if err != nil {
		return err
	}
	if i := indexOf(records, b.ID); i >= 0 {
		records[i] = b
	} else {
		records = append(records, b)
	}
	return s.bookmarks.write(records)
}

func (s *Store) PutIfAbsent(_ context.Context, b domain.Bookmark) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.bookmarks.load()
	if err != nil {
		return false, err
	}
	if indexOf(records, b.ID) >= 0 {
		return false, nil
	}
	if err := s.bookmarks.write(append(records, b)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.bookmarks.load()
	if err != nil {
		return err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil
	}
	return s.bookmarks.write(append(records[:i], records[i+1:]...))
}

func indexOf(records []domain.Bookmark, id string) int {
	for i, b := range records {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// ─────────────────────────────────────────────────────────────────
// Subscriptions
// ─────────────────────────────────────────────────────────────────

func (s *Store) Upsert(_ context.Context, rec domain.RemoteSubscription) (domain.RemoteSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.subscriptions.load()
	if err != nil {
		return domain.RemoteSubscription{}, err
	}
	if i := endpointIndex(records, rec.Endpoint); i >= 0 {
		rec.ID = records[i].ID
		rec.CreatedAt = records[i].CreatedAt
		records[i] = rec
	} else {
		records = append(records, rec)
	}
	if err := s.subscriptions.write(records); err != nil {
		return domain.RemoteSubscription{}, err
	}
	return rec, nil
}

func (s *Store) DeleteSubscription(_ context.Context, endpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.subscriptions.load()
	if err != nil {
		return false, err
	}
	i := endpointIndex(records, endpoint)
	if i < 0 {
		return false, nil
	}
	if err := s.subscriptions.write(append(records[:i], records[i+1:]...)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetSubscription(_ context.Context, endpoint string) (domain.RemoteSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.subscriptions.read()
	if err != nil {
		return domain.RemoteSubscription{}, err
	}
	if i := endpointIndex(records, endpoint); i >= 0 {
		return records[i], nil
	}
	return domain.RemoteSubscription{}, domain.ErrNotFound
}

func (s *Store) CountSubscriptions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.subscriptions.read()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func endpointIndex(records []domain.RemoteSubscription, endpoint string) int {
	for i, r := range records {
		if r.Endpoint == endpoint {
			return i
		}
	}
	return -1
}
