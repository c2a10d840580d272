package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_BookmarkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	in := domain.Bookmark{
		ID:          "s1",
		Name:        "Harbor walk",
		Description: "A story about the harbor",
		PhotoURL:    "https://img.example/s1.jpg",
		Lat:         domain.Coordinate(0),
		Lon:         domain.Coordinate(-122.5),
		CreatedAt:   &created,
	}
	require.NoError(t, s.Put(ctx, in))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.PhotoURL, got.PhotoURL)
	require.NotNil(t, got.Lat, "zero latitude must survive")
	assert.Equal(t, 0.0, *got.Lat)
	assert.Equal(t, -122.5, *got.Lon)
	require.NotNil(t, got.CreatedAt)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestStore_OptionalFieldsStayNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "bare"}))
	got, err := s.Get(ctx, "bare")
	require.NoError(t, err)
	assert.Nil(t, got.Lat)
	assert.Nil(t, got.Lon)
	assert.Nil(t, got.CreatedAt)
	assert.False(t, got.HasLocation())
}

func TestStore_OrderSurvivesUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, domain.Bookmark{ID: id}))
	}
	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "c", Name: "replaced"}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "replaced", list[0].Name)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}

func TestStore_PutIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.PutIfAbsent(ctx, domain.Bookmark{ID: "s1", Name: "first"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.PutIfAbsent(ctx, domain.Bookmark{ID: "s1", Name: "second"})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "s1"}))
	require.NoError(t, s.Delete(ctx, "missing"))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "s1"}))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}

func TestStore_Subscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	endpoint := "https://push.example/abc"

	first, err := s.Upsert(ctx, domain.RemoteSubscription{
		ID: "id-1", Endpoint: endpoint, CreatedAt: created, UpdatedAt: created,
		Keys: domain.SubscriptionKeys{P256DH: "k1", Auth: "a1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", first.ID)

	second, err := s.Upsert(ctx, domain.RemoteSubscription{
		ID: "id-2", Endpoint: endpoint, CreatedAt: created.Add(time.Hour), UpdatedAt: created.Add(time.Hour),
		Keys: domain.SubscriptionKeys{P256DH: "k2", Auth: "a2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", second.ID)
	assert.True(t, second.CreatedAt.Equal(created))
	assert.True(t, second.UpdatedAt.Equal(created.Add(time.Hour)))
	assert.Equal(t, "k2", second.Keys.P256DH)

	n, err := s.CountSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	existed, err := s.DeleteSubscription(ctx, endpoint)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteSubscription(ctx, endpoint)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.GetSubscription(ctx, endpoint)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
