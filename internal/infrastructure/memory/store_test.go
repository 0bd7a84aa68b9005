package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-otp-stream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSetGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestGet_Missing(t *testing.T) {
	_, err := NewStore().Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSet_RejectsNonPositiveTTL(t *testing.T) {
	err := NewStore().Set(context.Background(), "k", "v", 0)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithClock(clk.Now))
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	clk.Advance(59 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	ok, err := s.CompareAndDelete(ctx, "k", "v")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_Overwrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "old", time.Minute))
	require.NoError(t, s.Set(ctx, "k", "new", time.Minute))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestSet_SweepsExpiredEntriesOncePerInterval(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithClock(clk.Now), WithSweepInterval(10*time.Second))
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", "1", time.Second))
	require.NoError(t, s.Set(ctx, "b", "2", time.Second))
	clk.Advance(2 * time.Second)

	// expired but inside the sweep interval: kept until the next sweep
	require.NoError(t, s.Set(ctx, "c", "3", time.Minute))
	assert.Equal(t, 3, s.Len())

	clk.Advance(10 * time.Second)
	require.NoError(t, s.Set(ctx, "d", "4", time.Minute))
	assert.Equal(t, 2, s.Len())
}

func TestGet_UnsweptExpiredEntryIsMissing(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithClock(clk.Now))
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", "1", time.Second))
	clk.Advance(2 * time.Second)

	_, err := s.Get(ctx, "a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCompareAndDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	ok, err := s.CompareAndDelete(ctx, "k", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndDelete(ctx, "k", "v")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndDelete(ctx, "k", "v")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_Idempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	assert.Equal(t, 0, s.Len())
}
