package client

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"componentlab/api/logger"
	"componentlab/api/models"
)

const (
	StatsTTL     = 3 * time.Second
	fetchTimeout = 10 * time.Second
	statsKey     = "stats"
)

type StatsFetcher interface {
	GetStats(ctx context.Context) (*models.StatsSnapshot, error)
}

// StatsCache keeps the latest statistics for its TTL (StatsTTL unless
// WithStatsTTL says otherwise) and collapses concurrent fetches into one
// request.
type StatsCache struct {
	fetcher StatsFetcher
	ttl     time.Duration
	entries *cache.Cache
	flight  singleflight.Group
	log     *logger.Logger

	mu          sync.Mutex
	generation  uint64
	subscribers map[uint64]func(*models.StatsSnapshot, error)
	nextSub     uint64

	refreshing sync.WaitGroup
}

type StatsCacheOption func(*StatsCache)

// WithStatsTTL overrides how long a fetched snapshot stays fresh.
func WithStatsTTL(ttl time.Duration) StatsCacheOption {
	return func(s *StatsCache) { s.ttl = ttl }
}

func NewStatsCache(fetcher StatsFetcher, log *logger.Logger, opts ...StatsCacheOption) *StatsCache {
	s := &StatsCache{
		fetcher:     fetcher,
		ttl:         StatsTTL,
		log:         log,
		subscribers: map[uint64]func(*models.StatsSnapshot, error){},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.entries = cache.New(s.ttl, 2*s.ttl)
	return s
}

// Get returns the cached snapshot while it is fresh and fetches otherwise.
// Cancelling ctx abandons the wait; a shared fetch keeps running for the
// other callers.
func (s *StatsCache) Get(ctx context.Context) (*models.StatsSnapshot, error) {
	if v, ok := s.entries.Get(statsKey); ok {
		return v.(*models.StatsSnapshot), nil
	}
	return s.fetch(ctx)
}

func (s *StatsCache) fetch(ctx context.Context) (*models.StatsSnapshot, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	results := s.flight.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		if cached, ok := s.entries.Get(statsKey); ok {
			return cached, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		snap, err := s.fetcher.GetStats(fctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.generation == gen {
			s.entries.Set(statsKey, snap, s.ttl)
		}
		s.mu.Unlock()
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.StatsSnapshot), nil
	}
}

// Invalidate drops the cached snapshot. Fetches already in flight do not
// repopulate it. With subscribers present a refetch starts in the background
// and its result is delivered to them.
func (s *StatsCache) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.entries.Delete(statsKey)
	hasSubscribers := len(s.subscribers) > 0
	s.mu.Unlock()

	if hasSubscribers {
		s.refreshing.Add(1)
		go func() {
			defer s.refreshing.Done()
			s.refresh(context.Background())
		}()
	}
}

// WindowFocused revalidates: it refetches only when the entry is stale.
func (s *StatsCache) WindowFocused(ctx context.Context) error {
	if _, ok := s.entries.Get(statsKey); ok {
		return nil
	}
	_, err := s.refresh(ctx)
	return err
}

func (s *StatsCache) refresh(ctx context.Context) (*models.StatsSnapshot, error) {
	snap, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("stats refresh failed", zap.Error(err))
	}
	s.notify(snap, err)
	return snap, err
}

// Subscribe registers fn for refreshed snapshots and returns a function that
// removes it.
func (s *StatsCache) Subscribe(fn func(*models.StatsSnapshot, error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *StatsCache) notify(snap *models.StatsSnapshot, err error) {
	s.mu.Lock()
	fns := make([]func(*models.StatsSnapshot, error), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap, err)
	}
}

// Wait blocks until background refetches started by Invalidate finish.
func (s *StatsCache) Wait() {
	s.refreshing.Wait()
}
