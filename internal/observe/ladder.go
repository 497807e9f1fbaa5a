// internal/observe/ladder.go
package observe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Options tunes one Observe call.
type Options struct {
	// MinLevel skips levels the caller already knows are insufficient.
	MinLevel schemas.FidelityLevel
	// AllowVisual permits escalation to the visual level without an
	// ambiguity result, used after a DOM-based action failed post-wait.
	AllowVisual bool
}

// Ladder is the cost-ordered strategy list with a resolution predicate:
// try strategies in ascending cost, accept the first whose observation
// resolves the intent, escalate detail only on local failure. The common
// case resolves at the cheapest level and never pays for the rest.
type Ladder struct {
	cache      *Cache
	strategies []Strategy
	logger     *zap.Logger
}

// NewLadder assembles the standard four-level ladder.
func NewLadder(cache *Cache, logger *zap.Logger) *Ladder {
	log := logger.Named("capture_ladder")
	return &Ladder{
		cache:  cache,
		logger: log,
		strategies: []Strategy{
			&structuralStrategy{logger: log},
			&listingStrategy{logger: log},
			&queryStrategy{logger: log},
			&visualStrategy{logger: log},
		},
	}
}

// NewLadderWithStrategies injects a custom strategy list, ascending cost
// order. Used by tests.
func NewLadderWithStrategies(cache *Cache, logger *zap.Logger, strategies ...Strategy) *Ladder {
	return &Ladder{cache: cache, strategies: strategies, logger: logger.Named("capture_ladder")}
}

// Observe returns an observation sufficient to resolve the intent's target,
// plus the resolved target itself. Visual is reached only when the intent
// requires spatial interaction, a lower level reported ambiguity, or the
// caller explicitly allowed it after a failed DOM action.
func (l *Ladder) Observe(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, opts Options) (schemas.PageObservation, *schemas.ElementTarget, error) {
	minLevel := opts.MinLevel
	if intent.RequiresSpatial {
		minLevel = schemas.FidelityVisual
	}

	visualUnlocked := opts.AllowVisual || intent.RequiresSpatial
	var lastErr error

	for _, strat := range l.strategies {
		level := strat.Level()
		if level < minLevel {
			continue
		}
		if level == schemas.FidelityVisual && !visualUnlocked {
			break
		}

		obs, target, err := l.tryLevel(ctx, sess, strat, intent)
		if err == nil {
			l.logger.Debug("Intent resolved.",
				zap.String("level", level.String()),
				zap.Uint64("dom_version", obs.DOMVersion))
			return obs, target, nil
		}

		lastErr = err
		var ambErr *schemas.AmbiguousTargetError
		switch {
		case errors.As(err, &ambErr):
			// DOM-based targeting is ambiguous; spatial disambiguation is
			// now permitted.
			visualUnlocked = true
			l.logger.Debug("Ambiguity at level, escalating.", zap.String("level", level.String()))
		case errors.Is(err, schemas.ErrNoResolution):
			l.logger.Debug("No resolution at level, escalating.", zap.String("level", level.String()))
		default:
			return schemas.PageObservation{}, nil, err
		}
	}

	if lastErr == nil {
		lastErr = schemas.ErrNoResolution
	}
	return schemas.PageObservation{}, nil, fmt.Errorf("capture ladder exhausted: %w", lastErr)
}

// Snapshot captures a listing-level observation without resolving a
// target, for callers that want the page's interactive surface as a whole.
func (l *Ladder) Snapshot(ctx context.Context, sess schemas.BrowserSession) (schemas.PageObservation, error) {
	version := sess.DOMVersion()
	if obs, hit := l.cache.Get(schemas.FidelityListing, schemas.DetailLow, version); hit {
		return obs, nil
	}
	for _, strat := range l.strategies {
		if strat.Level() != schemas.FidelityListing {
			continue
		}
		obs, err := strat.Capture(ctx, sess, schemas.Intent{}, schemas.DetailLow)
		if err != nil {
			return schemas.PageObservation{}, err
		}
		l.cache.Put(obs)
		return obs, nil
	}
	return schemas.PageObservation{}, fmt.Errorf("no listing strategy configured")
}

// tryLevel runs one rung: cached low detail first, then fresh low detail,
// then high detail. Detail escalates lazily within the rung.
func (l *Ladder) tryLevel(ctx context.Context, sess schemas.BrowserSession, strat Strategy, intent schemas.Intent) (schemas.PageObservation, *schemas.ElementTarget, error) {
	version := sess.DOMVersion()

	obs, hit := l.cache.Get(strat.Level(), schemas.DetailLow, version)
	if !hit {
		fresh, err := strat.Capture(ctx, sess, intent, schemas.DetailLow)
		if err != nil {
			return schemas.PageObservation{}, nil, err
		}
		l.cache.Put(fresh)
		obs = fresh
	}

	target, err := resolve(obs, intent.Target)
	if err == nil {
		return obs, target, nil
	}

	// Only a plain miss warrants the high-detail variant of the same level;
	// ambiguity escalates the level instead.
	if !errors.Is(err, schemas.ErrNoResolution) || obs.Detail == schemas.DetailHigh {
		return schemas.PageObservation{}, nil, err
	}

	high, capErr := strat.Capture(ctx, sess, intent, schemas.DetailHigh)
	if capErr != nil {
		return schemas.PageObservation{}, nil, capErr
	}
	l.cache.Put(high)

	target, err = resolve(high, intent.Target)
	if err != nil {
		return schemas.PageObservation{}, nil, err
	}
	return high, target, nil
}
