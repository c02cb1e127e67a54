package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name"`
}

// loadOnce succeeds on the first call and errors afterwards, so a test
// can prove a second read came from the cache.
func loadOnce(items []item) func(context.Context) ([]item, error) {
	called := false
	return func(context.Context) ([]item, error) {
		if called {
			return nil, errors.New("store hit twice")
		}
		called = true
		return items, nil
	}
}

func TestFetchListCachesResult(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	load := loadOnce([]item{{Name: "a"}, {Name: "b"}})

	got, err := FetchList(ctx, c, Key("recipient", "u1"), time.Minute, load)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Second read must not reach the store.
	got, err = FetchList(ctx, c, Key("recipient", "u1"), time.Minute, load)
	require.NoError(t, err)
	require.Equal(t, []item{{Name: "a"}, {Name: "b"}}, got)
}

func TestFetchListKeysIsolateOwners(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := FetchList(ctx, c, Key("recipient", "u1"), time.Minute, loadOnce([]item{{Name: "mine"}}))
	require.NoError(t, err)

	// A different owner gets their own slot, not u1's rows.
	got, err := FetchList(ctx, c, Key("recipient", "u2"), time.Minute, loadOnce([]item{{Name: "theirs"}}))
	require.NoError(t, err)
	require.Equal(t, []item{{Name: "theirs"}}, got)

	// Entity types do not collide either.
	require.NotEqual(t, Key("recipient", "u1"), Key("message", "u1"))
}

func TestFetchListExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := FetchList(ctx, c, Key("message", "u1"), time.Millisecond, loadOnce([]item{{Name: "old"}}))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Slot expired; the loader runs again.
	got, err := FetchList(ctx, c, Key("message", "u1"), time.Minute, loadOnce([]item{{Name: "fresh"}}))
	require.NoError(t, err)
	require.Equal(t, []item{{Name: "fresh"}}, got)
}

func TestFetchListLoadError(t *testing.T) {
	c := NewMemory()
	boom := errors.New("db down")
	_, err := FetchList(context.Background(), c, Key("newsletter", "u1"), time.Minute,
		func(context.Context) ([]item, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("backend down") }

func TestFetchListSurvivesBackendFailure(t *testing.T) {
	got, err := FetchList(context.Background(), brokenCache{}, Key("recipient", "u1"), time.Minute,
		loadOnce([]item{{Name: "a"}}))
	require.NoError(t, err)
	require.Equal(t, []item{{Name: "a"}}, got)
}

func TestRefillListReplacesSlot(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	key := Key("recipient", "u1")

	_, err := FetchList(ctx, c, key, time.Minute, loadOnce([]item{{Name: "stale"}}))
	require.NoError(t, err)

	RefillList(ctx, c, key, time.Minute, func(context.Context) ([]item, error) {
		return []item{{Name: "fresh"}}, nil
	})

	got, err := FetchList(ctx, c, key, time.Minute,
		func(context.Context) ([]item, error) { return nil, errors.New("should not reach store") })
	require.NoError(t, err)
	require.Equal(t, []item{{Name: "fresh"}}, got)
}

func TestRefillListDropsSlotOnLoadError(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	key := Key("recipient", "u1")

	_, err := FetchList(ctx, c, key, time.Minute, loadOnce([]item{{Name: "stale"}}))
	require.NoError(t, err)

	RefillList(ctx, c, key, time.Minute, func(context.Context) ([]item, error) {
		return nil, errors.New("db down")
	})

	// Refill failure must not leave the stale rows behind.
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}
