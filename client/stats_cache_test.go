package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentlab/api/logger"
	"componentlab/api/models"
)

// fakeFetcher returns snapshots whose Total is the call number. When gate is
// set the first call signals started and blocks until gate is closed.
type fakeFetcher struct {
	calls   atomic.Int64
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeFetcher) GetStats(ctx context.Context) (*models.StatsSnapshot, error) {
	n := f.calls.Add(1)
	if n == 1 && f.gate != nil {
		close(f.started)
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.StatsSnapshot{Total: uint64(n)}, nil
}

func gatedFetcher() *fakeFetcher {
	return &fakeFetcher{started: make(chan struct{}), gate: make(chan struct{})}
}

func TestStatsCacheServesFreshEntry(t *testing.T) {
	f := &fakeFetcher{}
	c := NewStatsCache(f, logger.NewNop())
	ctx := context.Background()

	first, err := c.Get(ctx)
	require.NoError(t, err)
	second, err := c.Get(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestStatsCacheCollapsesConcurrentFetches(t *testing.T) {
	f := gatedFetcher()
	c := NewStatsCache(f, logger.NewNop())

	var wg sync.WaitGroup
	results := make([]*models.StatsSnapshot, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := c.Get(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	<-f.started
	close(f.gate)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	for _, snap := range results {
		require.NotNil(t, snap)
		assert.EqualValues(t, 1, snap.Total)
	}
}

func TestStatsCacheInvalidateDuringFetch(t *testing.T) {
	f := gatedFetcher()
	c := NewStatsCache(f, logger.NewNop())
	ctx := context.Background()

	done := make(chan *models.StatsSnapshot)
	go func() {
		snap, _ := c.Get(ctx)
		done <- snap
	}()
	<-f.started
	c.Invalidate()
	close(f.gate)
	stale := <-done
	assert.EqualValues(t, 1, stale.Total)

	fresh, err := c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fresh.Total)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStatsCacheInvalidateRefreshesSubscribers(t *testing.T) {
	f := &fakeFetcher{}
	c := NewStatsCache(f, logger.NewNop())
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen []uint64
	)
	unsubscribe := c.Subscribe(func(snap *models.StatsSnapshot, err error) {
		mu.Lock()
		defer mu.Unlock()
		if assert.NoError(t, err) {
			seen = append(seen, snap.Total)
		}
	})

	c.Invalidate()
	c.Wait()
	assert.Equal(t, []uint64{2}, seen)

	unsubscribe()
	c.Invalidate()
	c.Wait()
	assert.Len(t, seen, 1)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStatsCacheWindowFocused(t *testing.T) {
	f := &fakeFetcher{}
	c := NewStatsCache(f, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, c.WindowFocused(ctx))
	assert.EqualValues(t, 1, f.calls.Load())

	require.NoError(t, c.WindowFocused(ctx))
	assert.EqualValues(t, 1, f.calls.Load())

	c.Invalidate()
	require.NoError(t, c.WindowFocused(ctx))
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStatsCacheDoesNotStoreFailures(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	c := NewStatsCache(f, logger.NewNop())

	_, err := c.Get(context.Background())
	require.Error(t, err)
	_, err = c.Get(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStatsCacheExpiresAfterTTL(t *testing.T) {
	f := &fakeFetcher{}
	c := NewStatsCache(f, logger.NewNop(), WithStatsTTL(200*time.Millisecond))
	ctx := context.Background()

	fetchedAt := time.Now()
	first, err := c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Total)

	again, err := c.Get(ctx)
	require.NoError(t, err)
	if time.Since(fetchedAt) < 200*time.Millisecond {
		assert.EqualValues(t, 1, again.Total)
		assert.EqualValues(t, 1, f.calls.Load())
	}

	time.Sleep(250 * time.Millisecond)
	refreshed, err := c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, refreshed.Total)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStatsCacheDefaultTTL(t *testing.T) {
	c := NewStatsCache(&fakeFetcher{}, logger.NewNop())
	assert.Equal(t, StatsTTL, c.ttl)
	assert.Equal(t, 3*time.Second, StatsTTL)
}

func TestStatsCacheCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	f := gatedFetcher()
	c := NewStatsCache(f, logger.NewNop())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Get(leaderCtx)
		leaderErr <- err
	}()
	<-f.started

	follower := make(chan *models.StatsSnapshot, 1)
	go func() {
		snap, err := c.Get(context.Background())
		assert.NoError(t, err)
		follower <- snap
	}()

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(f.gate)
	snap := <-follower
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.Total)

	cached, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, cached)
	assert.EqualValues(t, 1, f.calls.Load())
}
