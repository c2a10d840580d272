package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// newTestStore connects to STORYSHELF_TEST_REDIS_ADDR under a throwaway
// namespace. Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("STORYSHELF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STORYSHELF_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	ns := "storyshelf-test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, ns+":*", 0).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})
	return NewStore(client, ns)
}

func TestKeys(t *testing.T) {
	k := NewKeys("ns")
	assert.Equal(t, "ns:bookmark:s1", k.Bookmark("s1"))
	assert.Equal(t, "ns:bookmarks:all", k.AllBookmarks())
	assert.Equal(t, "ns:subscriptions:all", k.AllSubscriptions())

	a := k.Subscription("https://push.example/a")
	b := k.Subscription("https://push.example/b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, k.Subscription("https://push.example/a"))
	assert.Len(t, a, len("ns:subscription:")+64)
}

func TestStoreBookmarks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, domain.Bookmark{ID: id, Name: id}))
	}
	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "c", Name: "replaced"}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "replaced", list[0].Name)

	added, err := s.PutIfAbsent(ctx, domain.Bookmark{ID: "a", Name: "other"})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	added, err = s.PutIfAbsent(ctx, domain.Bookmark{ID: "d"})
	require.NoError(t, err)
	assert.True(t, added)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "missing"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestStoreListSkipsCorruptRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "ok"}))
	require.NoError(t, s.Put(ctx, domain.Bookmark{ID: "bad"}))
	require.NoError(t, s.client.Set(ctx, s.keys.Bookmark("bad"), "{not json", 0).Err())

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].ID)
}

func TestStoreSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	endpoint := "https://push.example/abc"

	first, err := s.Upsert(ctx, domain.RemoteSubscription{
		ID: "id-1", Endpoint: endpoint, CreatedAt: created,
		Keys: domain.SubscriptionKeys{P256DH: "k1", Auth: "a1"},
	})
	require.NoError(t, err)

	second, err := s.Upsert(ctx, domain.RemoteSubscription{
		ID: "id-2", Endpoint: endpoint, CreatedAt: created.Add(time.Hour),
		Keys: domain.SubscriptionKeys{P256DH: "k2", Auth: "a2"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.CreatedAt.Equal(created))

	got, err := s.GetSubscription(ctx, endpoint)
	require.NoError(t, err)
	assert.Equal(t, "k2", got.Keys.P256DH)

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
