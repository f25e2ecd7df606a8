package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/database/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func stores(t *testing.T, clk *clock) map[string]Store {
	t.Helper()

	mem := NewMemoryStore()
	mem.now = clk.now

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	dbStore, err := NewDatabaseStore(db)
	require.NoError(t, err)
	dbStore.now = clk.now

	return map[string]Store{"memory": mem, "database": dbStore}
}

func TestIncrementWithTTLWindows(t *testing.T) {
	clk := newClock()
	for name, store := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "rl:" + name

			count, ttl, err := store.IncrementWithTTL(ctx, key, time.Minute)
			require.NoError(t, err)
			require.EqualValues(t, 1, count)
			require.Equal(t, time.Minute, ttl)

			clk.advance(10 * time.Second)
			count, ttl, err = store.IncrementWithTTL(ctx, key, time.Minute)
			require.NoError(t, err)
			require.EqualValues(t, 2, count)
			require.Equal(t, 50*time.Second, ttl)

			clk.advance(time.Minute)
			count, _, err = store.IncrementWithTTL(ctx, key, time.Minute)
			require.NoError(t, err)
			require.EqualValues(t, 1, count)
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	clk := newClock()
	for name, store := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Minute))
			require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Minute))
			value, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("v2"), value)

			require.NoError(t, store.Delete(ctx, "k"))
			_, ok, err = store.Get(ctx, "k")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestGetIgnoresExpired(t *testing.T) {
	clk := newClock()
	for name, store := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Second))
			clk.advance(2 * time.Second)

			_, ok, err := store.Get(ctx, "short")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	clk := newClock()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewDatabaseStore(db)
	require.NoError(t, err)
	store.now = clk.now

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "expiring", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "forever", []byte("1"), 0))

	clk.advance(time.Minute)
	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNamespacedKeys(t *testing.T) {
	require.Equal(t, "bloodbridge:rl:1.2.3.4", namespaced("rl::1.2.3.4"))
	require.Equal(t, "bloodbridge:x", namespaced("bloodbridge:x"))
	require.Equal(t, "bloodbridge:x", namespaced(":x"))
}

func TestNewDatabaseStoreRequiresDB(t *testing.T) {
	_, err := NewDatabaseStore(nil)
	require.Error(t, err)
}
