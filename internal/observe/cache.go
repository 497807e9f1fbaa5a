// internal/observe/cache.go
package observe

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// InvalidateReason names the documented triggers that force a cache miss
// even when the DOM version has not moved.
type InvalidateReason string

const (
	// ReasonScroll: the caller intentionally scrolled and wants a fresh scan.
	ReasonScroll InvalidateReason = "scroll"
	// ReasonStaleReference: a prior action reported a stale element reference.
	ReasonStaleReference InvalidateReason = "stale_reference"
	// ReasonWaitFailed: a wait condition failed after retry.
	ReasonWaitFailed InvalidateReason = "wait_failed"
	// ReasonOperatorReverify: the operator explicitly requested re-verification.
	ReasonOperatorReverify InvalidateReason = "operator_reverify"
)

// Cache holds the most recent observation per fidelity level, keyed by the
// DOM version it was captured at. Re-observation is a major cost driver;
// the cache avoids it while guaranteeing the engine never acts on a
// superseded page state: a version mismatch is always a miss.
type Cache struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[schemas.FidelityLevel]schemas.PageObservation
}

// NewCache creates an empty observation cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		logger:  logger.Named("obs_cache"),
		entries: make(map[schemas.FidelityLevel]schemas.PageObservation),
	}
}

// Get returns the cached observation for the level if its version matches
// currentVersion. Anything else is a miss. A cached observation at the same
// level but lower detail still serves callers that asked for low detail.
func (c *Cache) Get(level schemas.FidelityLevel, detail schemas.DetailLevel, currentVersion uint64) (schemas.PageObservation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obs, ok := c.entries[level]
	if !ok || obs.Stale(currentVersion) || obs.Detail < detail {
		return schemas.PageObservation{}, false
	}
	return obs, true
}

// Put stores an observation, replacing any previous one at its level.
func (c *Cache) Put(obs schemas.PageObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[obs.Level] = obs
}

// Invalidate drops every cached observation for one of the documented
// triggers. Version-change staleness needs no call here; Get rejects it.
func (c *Cache) Invalidate(reason InvalidateReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 0 {
		c.logger.Debug("Invalidating observation cache.",
			zap.String("reason", string(reason)),
			zap.Int("dropped", len(c.entries)))
	}
	c.entries = make(map[schemas.FidelityLevel]schemas.PageObservation)
}

// Len reports the number of cached levels, for tests and introspection.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
