package resultcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/domain"
)

func userPage(names ...string) domain.CachedPage {
	views := make([]domain.UserView, 0, len(names))
	for _, n := range names {
		views = append(views, domain.UserView{Username: n})
	}
	p := domain.Paginate(views, domain.PageRequest{Page: 1, Size: 2})
	return domain.CachedPage{Users: &p}
}

func newTestCache(t *testing.T, size int) (*Cache, *clock.MockClock) {
	t.Helper()
	clk := &clock.MockClock{CurrentTime: time.Unix(1_700_000_000, 0)}
	c, err := New(size, clk)
	require.NoError(t, err)
	return c, clk
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0, nil)
	assert.Error(t, err)
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	page := userPage("alice", "alicia")
	require.NoError(t, c.Set(ctx, "k", page, 100*time.Second))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, page, got)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 10, st.Capacity)
	assert.Equal(t, 1, st.Size)
}

func TestExpiry(t *testing.T) {
	c, clk := newTestCache(t, 10)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "name", userPage("a"), 100*time.Second))
	require.NoError(t, c.Set(ctx, "phone", domain.CachedPage{User: &domain.UserView{Username: "b"}}, 600*time.Second))

	clk.Advance(99 * time.Second)
	_, ok, _ := c.Get(ctx, "name")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok, _ = c.Get(ctx, "name")
	assert.False(t, ok, "entry expires exactly at its TTL")
	assert.Equal(t, 1, c.Len(), "expired entry is removed on read")

	_, ok, _ = c.Get(ctx, "phone")
	assert.True(t, ok)

	clk.Advance(500 * time.Second)
	_, ok, _ = c.Get(ctx, "phone")
	assert.False(t, ok)
}

func TestSet_NonPositiveTTL(t *testing.T) {
	c, _ := newTestCache(t, 10)
	require.NoError(t, c.Set(context.Background(), "k", userPage("a"), 0))
	assert.Equal(t, 0, c.Len())
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprint(i), userPage("a"), time.Minute))
	}
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(5), c.Stats().Evictions)
}

func TestCapacityBound(t *testing.T) {
	c, _ := newTestCache(t, 2)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", userPage("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", userPage("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", userPage("c"), time.Minute))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 64)
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("%d:%d", w, i%10)
				_ = c.Set(ctx, key, userPage("x"), time.Minute)
				_, _, _ = c.Get(ctx, key)
				if i%25 == 0 {
					_ = c.Clear(ctx)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
