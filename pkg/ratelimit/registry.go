package ratelimit

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

// state is the per-target record. sem, a weighted semaphore of size one,
// guards last and passes; callers queued on it leave when their context ends.
type state struct {
	sem    *semaphore.Weighted
	last   time.Time
	passes uint64
}

func newState() *state {
	return &state{sem: semaphore.NewWeighted(1)}
}

func (s *state) lock(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

func (s *state) tryLock() bool {
	return s.sem.TryAcquire(1)
}

func (s *state) unlock() {
	s.sem.Release(1)
}

// registry maps target IDs to their state. Without retention entries never
// expire. With retention an entry expires once it has not been stamped for
// that long, and the go-cache janitor removes it on the next sweep.
type registry struct {
	items     *cache.Cache
	retention time.Duration
}

func newRegistry(retention, sweep time.Duration) *registry {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if retention > 0 {
		expiration, cleanup = retention, sweep
	}
	return &registry{
		items:     cache.New(expiration, cleanup),
		retention: retention,
	}
}

// acquire returns the state for key, inserting a fresh one if absent. The
// second result reports whether this call created it. Add is atomic, so
// concurrent callers for the same key always end up with one state.
func (r *registry) acquire(key string) (*state, bool) {
	for {
		if v, ok := r.items.Get(key); ok {
			return v.(*state), false
		}
		s := newState()
		if err := r.items.Add(key, s, cache.DefaultExpiration); err == nil {
			return s, true
		}
	}
}

// touch restarts the retention period of key. Must be called with s locked.
func (r *registry) touch(key string, s *state) {
	if r.retention > 0 {
		r.items.SetDefault(key, s)
	}
}

// owns reports whether s is still the live state for key.
func (r *registry) owns(key string, s *state) bool {
	v, ok := r.items.Get(key)
	return ok && v.(*state) == s
}

func (r *registry) len() int {
	return r.items.ItemCount()
}
