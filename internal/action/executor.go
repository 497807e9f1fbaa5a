// internal/action/executor.go
package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observe"
)

// Guard is consulted before every mutating action. The interaction gate
// implements it; while the gate is paused awaiting operator input, mutating
// actions fail with ErrGateBlocked instead of reaching the page.
type Guard interface {
	AllowAction(t schemas.ActionType) error
}

// Executor dispatches resolved intents against the session's selected page.
// It owns the pre-action staleness check, the DOM version bump after
// mutations, and the pacing between consecutive actions.
type Executor struct {
	engineCfg  config.EngineConfig
	browserCfg config.BrowserConfig
	cache      *observe.Cache
	guard      Guard
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewExecutor(cfg *config.Config, cache *observe.Cache, guard Guard, logger *zap.Logger) *Executor {
	return &Executor{
		engineCfg:  cfg.Engine,
		browserCfg: cfg.Browser,
		cache:      cache,
		guard:      guard,
		limiter:    rate.NewLimiter(rate.Every(cfg.Engine.ActionMinGap), 1),
		logger:     logger.Named("executor"),
	}
}

// actionOf maps an intent type onto the executor vocabulary. Composite and
// irreversible intents (complete_form, submit, close) are decided upstream
// and never reach the executor directly.
func actionOf(t schemas.IntentType) (schemas.ActionType, error) {
	switch t {
	case schemas.IntentNavigate:
		return schemas.ActionNavigate, nil
	case schemas.IntentClick:
		return schemas.ActionClick, nil
	case schemas.IntentFill:
		return schemas.ActionFill, nil
	case schemas.IntentTypeKeys:
		return schemas.ActionTypeKeys, nil
	case schemas.IntentSetFiles:
		return schemas.ActionSetFiles, nil
	case schemas.IntentScroll:
		return schemas.ActionScroll, nil
	case schemas.IntentWait:
		return schemas.ActionWait, nil
	}
	return "", fmt.Errorf("intent %q is not directly executable", t)
}

// Perform executes one resolved intent. The target may be nil for intents
// that do not address an element (navigate, whole-page scroll, key events
// against the focused element).
func (e *Executor) Perform(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, target *schemas.ElementTarget) error {
	at, err := actionOf(intent.Type)
	if err != nil {
		return err
	}

	if at.Mutating() && e.guard != nil {
		if err := e.guard.AllowAction(at); err != nil {
			return err
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	// A target resolved against a superseded DOM version must never be
	// dispatched; the page it described no longer exists.
	if target != nil {
		if cur := sess.DOMVersion(); target.DOMVersion != cur {
			e.cache.Invalidate(observe.ReasonStaleReference)
			return &schemas.StaleTargetError{TargetVersion: target.DOMVersion, CurrentVersion: cur}
		}
	}

	switch at {
	case schemas.ActionNavigate:
		err = e.navigate(ctx, sess, intent.Value)
	case schemas.ActionClick:
		err = e.click(ctx, sess, target)
	case schemas.ActionFill:
		err = e.fill(ctx, sess, target, intent.Value)
	case schemas.ActionTypeKeys:
		err = e.typeKeys(ctx, sess, target, intent.Value)
	case schemas.ActionSetFiles:
		err = e.setFiles(ctx, sess, target, intent.Files)
	case schemas.ActionScroll:
		err = e.scroll(ctx, sess, target, intent.Value)
	case schemas.ActionWait:
		err = e.wait(ctx, sess, intent)
	}
	if err != nil {
		return err
	}

	if at.Mutating() {
		version := sess.BumpDOMVersion()
		e.logger.Debug("Mutating action applied.",
			zap.String("action", string(at)),
			zap.Uint64("dom_version", version))
	}
	return nil
}

func (e *Executor) navigate(ctx context.Context, sess schemas.BrowserSession, url string) error {
	if url == "" {
		return fmt.Errorf("navigate requires a URL")
	}
	navCtx, cancel := context.WithTimeout(sess.Ctx(), e.browserCfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() != nil {
			return &schemas.TimeoutError{Condition: fmt.Sprintf("navigation to %s", url), Err: err}
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (e *Executor) click(ctx context.Context, sess schemas.BrowserSession, target *schemas.ElementTarget) error {
	if target == nil {
		return fmt.Errorf("click requires a resolved target")
	}
	if target.Coord != nil {
		return e.clickAt(ctx, sess, *target.Coord, target.Space)
	}
	if err := chromedp.Run(sess.Ctx(), chromedp.Click(target.Locator, queryOpt(target.Locator))); err != nil {
		return fmt.Errorf("click on %q failed: %w", target.Locator, err)
	}
	return nil
}

// clickAt dispatches a coordinate click. Viewport-space coordinates go
// straight to the mouse primitive; page-space coordinates are translated by
// the current scroll offset first, scrolling the point into view when it
// lies outside the viewport.
func (e *Executor) clickAt(ctx context.Context, sess schemas.BrowserSession, coord schemas.Point, space schemas.CoordSpace) error {
	pt := coord
	if space == schemas.SpacePage {
		var metrics [4]float64 // scrollX, scrollY, innerWidth, innerHeight
		if err := chromedp.Run(sess.Ctx(),
			chromedp.Evaluate(`[window.scrollX, window.scrollY, window.innerWidth, window.innerHeight]`, &metrics),
		); err != nil {
			return fmt.Errorf("failed to read scroll offset: %w", err)
		}

		pt = viewportPoint(coord, space, metrics[0], metrics[1])
		if pt.X < 0 || pt.Y < 0 || pt.X >= metrics[2] || pt.Y >= metrics[3] {
			script := fmt.Sprintf("window.scrollTo(%f, %f)", coord.X-metrics[2]/2, coord.Y-metrics[3]/2)
			if err := chromedp.Run(sess.Ctx(), chromedp.Evaluate(script, nil)); err != nil {
				return fmt.Errorf("failed to scroll target into view: %w", err)
			}
			e.cache.Invalidate(observe.ReasonScroll)
			if err := chromedp.Run(sess.Ctx(),
				chromedp.Evaluate(`[window.scrollX, window.scrollY, window.innerWidth, window.innerHeight]`, &metrics),
			); err != nil {
				return fmt.Errorf("failed to re-read scroll offset: %w", err)
			}
			pt = viewportPoint(coord, space, metrics[0], metrics[1])
		}
	}

	if err := chromedp.Run(sess.Ctx(), chromedp.MouseClickXY(pt.X, pt.Y)); err != nil {
		return fmt.Errorf("coordinate click at (%.0f, %.0f) failed: %w", pt.X, pt.Y, err)
	}
	return nil
}

// viewportPoint translates a coordinate into viewport space. Viewport-space
// input passes through unchanged.
func viewportPoint(p schemas.Point, space schemas.CoordSpace, scrollX, scrollY float64) schemas.Point {
	if space == schemas.SpacePage {
		return schemas.Point{X: p.X - scrollX, Y: p.Y - scrollY}
	}
	return p
}

func (e *Executor) fill(ctx context.Context, sess schemas.BrowserSession, target *schemas.ElementTarget, value string) error {
	if target == nil || target.Locator == "" {
		return fmt.Errorf("fill requires a locator target")
	}
	// Clear-then-type keeps refills idempotent: setting the same answer
	// twice leaves the same value, never a doubled one.
	opt := queryOpt(target.Locator)
	if err := chromedp.Run(sess.Ctx(),
		chromedp.Clear(target.Locator, opt),
		chromedp.SendKeys(target.Locator, value, opt),
	); err != nil {
		return fmt.Errorf("fill of %q failed: %w", target.Locator, err)
	}
	return nil
}

func (e *Executor) typeKeys(ctx context.Context, sess schemas.BrowserSession, target *schemas.ElementTarget, value string) error {
	if target != nil && target.Locator != "" {
		if err := chromedp.Run(sess.Ctx(), chromedp.SendKeys(target.Locator, value, queryOpt(target.Locator))); err != nil {
			return fmt.Errorf("typing into %q failed: %w", target.Locator, err)
		}
		return nil
	}
	// No target: send to whatever holds focus.
	if err := chromedp.Run(sess.Ctx(), chromedp.KeyEvent(value)); err != nil {
		return fmt.Errorf("key event failed: %w", err)
	}
	return nil
}

func (e *Executor) setFiles(ctx context.Context, sess schemas.BrowserSession, target *schemas.ElementTarget, files []string) error {
	if target == nil || target.Locator == "" {
		return fmt.Errorf("set_files requires a locator target")
	}
	if len(files) == 0 {
		return fmt.Errorf("set_files requires at least one file path")
	}
	if err := chromedp.Run(sess.Ctx(), chromedp.SetUploadFiles(target.Locator, files, queryOpt(target.Locator))); err != nil {
		return fmt.Errorf("file upload to %q failed: %w", target.Locator, err)
	}
	return nil
}

func (e *Executor) scroll(ctx context.Context, sess schemas.BrowserSession, target *schemas.ElementTarget, direction string) error {
	var err error
	switch {
	case target != nil && target.Locator != "":
		err = chromedp.Run(sess.Ctx(), chromedp.ScrollIntoView(target.Locator, queryOpt(target.Locator)))
	case direction == "up":
		err = chromedp.Run(sess.Ctx(), chromedp.Evaluate(`window.scrollBy(0, -Math.round(window.innerHeight * 0.8))`, nil))
	default:
		err = chromedp.Run(sess.Ctx(), chromedp.Evaluate(`window.scrollBy(0, Math.round(window.innerHeight * 0.8))`, nil))
	}
	if err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	// Scrolling does not change the DOM, but it silently invalidates every
	// viewport-relative observation.
	e.cache.Invalidate(observe.ReasonScroll)
	return nil
}

func (e *Executor) wait(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent) error {
	if intent.Target.Locator == "" {
		return fmt.Errorf("wait requires a locator target")
	}
	timeout := intent.WaitTimeout
	if timeout <= 0 {
		timeout = e.engineCfg.WaitTimeout
	}
	waitCtx, cancel := context.WithTimeout(sess.Ctx(), timeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(intent.Target.Locator, queryOpt(intent.Target.Locator))); err != nil {
		// The page may have changed shape while we waited; force fresh
		// observations before anything retries.
		e.cache.Invalidate(observe.ReasonWaitFailed)
		return &schemas.TimeoutError{Condition: intent.Target.Locator, Err: err}
	}
	return nil
}

// queryOpt picks the chromedp query option matching the locator dialect:
// positional XPath locators from the query level use the search facility,
// everything else is CSS.
func queryOpt(locator string) chromedp.QueryOption {
	if strings.HasPrefix(locator, "/") || strings.HasPrefix(locator, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
