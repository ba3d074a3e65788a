// Package cache memoises model output by content fingerprint and makes sure
// only one model call per fingerprint is in flight at a time.
package cache

import (
	"context"
	"fmt"

	"catalystbot/types"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Backend is where cached analyses live. store.Store satisfies it.
type Backend interface {
	GetCachedAnalysis(ctx context.Context, fingerprint string) (types.Analysis, bool, error)
	PutCachedAnalysis(ctx context.Context, fingerprint string, a types.Analysis) error
}

// ComputeFunc produces an analysis on a miss. Returning keep=false hands the
// result to callers without storing it.
type ComputeFunc func(ctx context.Context) (a types.Analysis, keep bool)

// Lookup describes how a result was obtained.
type Lookup struct {
	Hit      bool  // served from the backend
	Shared   bool  // waited on another caller's computation
	Stored   bool  // computed and written to the backend
	StoreErr error // write failed; the result is still valid
}

// Cache fronts a Backend with per-fingerprint call deduplication.
type Cache struct {
	backend Backend
	group   singleflight.Group
	log     zerolog.Logger
}

// New creates a cache over backend.
func New(backend Backend, logger zerolog.Logger) *Cache {
	return &Cache{
		backend: backend,
		log:     logger.With().Str("component", "cache").Logger(),
	}
}

type flightResult struct {
	analysis types.Analysis
	lookup   Lookup
}

// GetOrCompute returns the cached analysis for fingerprint, or runs compute
// once across all concurrent callers for the same fingerprint. A backend read
// error is treated as a miss.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, compute ComputeFunc) (types.Analysis, Lookup) {
	leader := false
	v, _, _ := c.group.Do(fingerprint, func() (any, error) {
		leader = true
		if a, ok, err := c.backend.GetCachedAnalysis(ctx, fingerprint); err != nil {
			c.log.Warn().Err(err).Str("fingerprint", short(fingerprint)).Msg("cache read failed, treating as miss")
		} else if ok {
			return flightResult{analysis: a, lookup: Lookup{Hit: true}}, nil
		}

		a, keep := compute(ctx)
		res := flightResult{analysis: a}
		if keep {
			if err := c.backend.PutCachedAnalysis(ctx, fingerprint, a); err != nil {
				res.lookup.StoreErr = fmt.Errorf("store %s: %w", short(fingerprint), err)
				c.log.Warn().Err(err).Str("fingerprint", short(fingerprint)).Msg("cache write failed")
			} else {
				res.lookup.Stored = true
			}
		}
		return res, nil
	})

	res := v.(flightResult)
	res.lookup.Shared = !leader
	return res.analysis.Clone(), res.lookup
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
