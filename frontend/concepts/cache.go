package concepts

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fennec-lang/fennec/frontend/diag"
)

type cacheKey struct {
	constraint uint64
	visibility uint64
}

type cached struct {
	res *Resolved
	d   diag.Diag
}

// CachedResolver memoizes resolution outcomes per (constraint signature,
// visibility identity). Resolution is pure, so a cached outcome is always the
// outcome; singleflight guarantees at-most-once computation per key even under
// concurrent requests from parallel call sites.
type CachedResolver struct {
	inner *Resolver
	group singleflight.Group

	mu      sync.RWMutex
	results map[cacheKey]cached
}

func NewCachedResolver(registry *Registry) *CachedResolver {
	return &CachedResolver{
		inner:   NewResolver(registry),
		results: make(map[cacheKey]cached),
	}
}

// Resolver exposes the underlying uncached resolver.
func (cr *CachedResolver) Resolver() *Resolver { return cr.inner }

// Resolve behaves exactly like Resolver.Resolve, with memoization.
func (cr *CachedResolver) Resolve(c Constraint, vis Visibility) (*Resolved, diag.Diag) {
	key := cacheKey{constraint: c.Hash(), visibility: vis.Hash()}

	cr.mu.RLock()
	hit, ok := cr.results[key]
	cr.mu.RUnlock()
	if ok {
		return hit.res, hit.d
	}

	v, _, _ := cr.group.Do(fmt.Sprintf("%x:%x", key.constraint, key.visibility), func() (any, error) {
		res, d := cr.inner.Resolve(c, vis)
		outcome := cached{res: res, d: d}
		cr.mu.Lock()
		cr.results[key] = outcome
		cr.mu.Unlock()
		return outcome, nil
	})
	outcome := v.(cached)
	return outcome.res, outcome.d
}

// Len reports how many outcomes are cached.
func (cr *CachedResolver) Len() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.results)
}
