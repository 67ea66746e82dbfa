package sponsorpay

import (
	"context"
	"sync"
	"time"
)

// SettlementCache deduplicates settlement attempts for the same
// authorization nonce. Nothing on the wire prevents two concurrent settle
// requests for one payload from both reaching the chain or the relay; the
// token contract's nonce check reverts the loser, but the losing attempt
// still burns relay and gas budget. The cache claims the (payer, nonce) key
// before submission, parks concurrent callers on the in-flight attempt, and
// serves the finished result for the TTL window.
type SettlementCache struct {
	mu       sync.Mutex
	results  map[string]*SettlementResult
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

// NewSettlementCache creates a settlement cache. Results of finished
// attempts are served for ttl before being dropped.
func NewSettlementCache(ttl time.Duration) *SettlementCache {
	return &SettlementCache{
		results:  make(map[string]*SettlementResult),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// CacheStatus is the result of claiming a settlement key.
type CacheStatus int

const (
	// CacheMiss means no cached result and no in-flight attempt; the caller
	// now holds the in-flight claim and must Complete or Release it.
	CacheMiss CacheStatus = iota
	// CacheHit means a finished result is available.
	CacheHit
	// CacheInFlight means another caller is settling this key.
	CacheInFlight
)

// Claim atomically checks the cache and claims the key if it is free.
// On CacheHit the cached result is returned. On CacheInFlight the returned
// channel closes when the owning attempt finishes. On CacheMiss the caller
// owns the attempt and receives the channel it must signal through
// Complete or Release.
func (c *SettlementCache) Claim(key string) (CacheStatus, *SettlementResult, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, ok := c.expiry[key]; ok {
		if time.Now().Before(expiry) {
			if result, ok := c.results[key]; ok {
				return CacheHit, result, nil
			}
		}
		delete(c.results, key)
		delete(c.expiry, key)
	}

	if done, ok := c.inFlight[key]; ok {
		return CacheInFlight, nil, done
	}

	done := make(chan struct{})
	c.inFlight[key] = done
	return CacheMiss, nil, done
}

// Await blocks until the in-flight attempt for key finishes, then returns
// its cached result. A nil result means the attempt was released without
// caching and the caller may retry.
func (c *SettlementCache) Await(ctx context.Context, key string, done chan struct{}) (*SettlementResult, error) {
	select {
	case <-done:
		return c.Get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the cached result for key, or nil if absent or expired.
func (c *SettlementCache) Get(key string) *SettlementResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.expiry[key]
	if !ok {
		return nil
	}
	if time.Now().After(expiry) {
		delete(c.results, key)
		delete(c.expiry, key)
		return nil
	}
	return c.results[key]
}

// Complete records the finished result, releases the in-flight claim and
// wakes all waiters.
func (c *SettlementCache) Complete(key string, result *SettlementResult, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[key] = result
	c.expiry[key] = time.Now().Add(c.ttl)
	delete(c.inFlight, key)
	close(done)

	c.sweepLocked()
}

// Release drops the in-flight claim without caching anything, allowing the
// settlement to be retried. Waiters are woken and observe a nil result.
func (c *SettlementCache) Release(key string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, key)
	close(done)
}

// sweepLocked drops expired entries. Caller must hold the lock.
func (c *SettlementCache) sweepLocked() {
	now := time.Now()
	for key, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.results, key)
			delete(c.expiry, key)
		}
	}
}
