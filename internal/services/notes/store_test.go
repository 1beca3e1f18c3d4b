package notes

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	ctx := context.Background()

	t.Run("EmptyList", func(t *testing.T) {
		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Empty(t, notes)
	})

	t.Run("CreateAssignsSequentialIDs", func(t *testing.T) {
		first, err := s.Create(ctx, "Groceries", "milk, eggs")
		require.NoError(t, err)
		require.Equal(t, "1", first.ID)

		second, err := s.Create(ctx, "Ideas", "write more tests")
		require.NoError(t, err)
		require.Equal(t, "2", second.ID)
	})

	t.Run("Get", func(t *testing.T) {
		n, err := s.Get(ctx, "2")
		require.NoError(t, err)
		require.Equal(t, &Note{ID: "2", Title: "Ideas", Content: "write more tests"}, n)
	})

	t.Run("GetMissing", func(t *testing.T) {
		for _, id := range []string{"99", "0", "abc", ""} {
			_, err := s.Get(ctx, id)
			require.ErrorIs(t, err, ErrNotFound, "id %q", id)
		}
	})

	t.Run("ListInIDOrder", func(t *testing.T) {
		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []*Note{
			{ID: "1", Title: "Groceries", Content: "milk, eggs"},
			{ID: "2", Title: "Ideas", Content: "write more tests"},
		}, notes)
	})

	t.Run("SeedSkipsNonEmptyStore", func(t *testing.T) {
		require.NoError(t, Seed(ctx, s, DefaultNotes()...))

		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, notes, 2)
	})

	t.Run("ConcurrentCreates", func(t *testing.T) {
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids []int
		)

		for i := range 10 {
			wg.Go(func() {
				n, err := s.Create(ctx, "note "+strconv.Itoa(i), "body")
				if !assertNoError(t, err) {
					return
				}

				id, _ := strconv.Atoi(n.ID)

				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			})
		}

		wg.Wait()

		sort.Ints(ids)
		require.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, ids)
	})
}

func assertNoError(t *testing.T, err error) bool {
	t.Helper()

	if err != nil {
		t.Errorf("unexpected error: %v", err)

		return false
	}

	return true
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_Seeded(t *testing.T) {
	s := NewMemoryStore(DefaultNotes()...)

	notes, err := s.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []*Note{
		{ID: "1", Title: "First Note", Content: "This is note 1"},
		{ID: "2", Title: "Second Note", Content: "This is note 2"},
	}, notes)

	notes[0].Title = "mutated"

	n, err := s.Get(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "First Note", n.Title)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "notes.db")

	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Close()) })

	require.Equal(t, path, s.Path())

	testStore(t, s)
}

func TestSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, Seed(ctx, s, DefaultNotes()...))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)

	defer s.Close()

	n, err := s.Get(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, "Second Note", n.Title)

	created, err := s.Create(ctx, "Third", "3")
	require.NoError(t, err)
	require.Equal(t, "3", created.ID)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("NOTES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NOTES_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 3})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	prefix := "notes-test:" + t.Name() + ":"

	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}

		client.Close()
	})

	s, err := NewRedisStore(RedisConfig{Client: client, KeyPrefix: prefix})
	require.NoError(t, err)

	testStore(t, s)
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{})
	require.EqualError(t, err, "redis client is required")
}
