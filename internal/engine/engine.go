// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/action"
	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/docstore"
	"github.com/xkilldash9x/formpilot/internal/form"
	"github.com/xkilldash9x/formpilot/internal/gate"
	"github.com/xkilldash9x/formpilot/internal/observe"
)

// SessionSource hands out the browser session. The session manager
// implements it through a thin adapter.
type SessionSource interface {
	Acquire(ctx context.Context, mode schemas.ConnectMode) (schemas.BrowserSession, error)
	Release(explicit bool) error
}

// Observer resolves an intent's target at the cheapest sufficient fidelity
// and captures target-free snapshots for the planner.
type Observer interface {
	Observe(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, opts observe.Options) (schemas.PageObservation, *schemas.ElementTarget, error)
	Snapshot(ctx context.Context, sess schemas.BrowserSession) (schemas.PageObservation, error)
}

// Performer dispatches one resolved intent against the page.
type Performer interface {
	Perform(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, target *schemas.ElementTarget) error
}

// FormCompleter drives the fill/audit cycle for one form.
type FormCompleter interface {
	Complete(ctx context.Context, sess schemas.BrowserSession, formID, pageURL string) (schemas.Outcome, error)
}

// Recorder persists progress steps; nil disables persistence.
type Recorder interface {
	RecordStep(ctx context.Context, step schemas.ProgressStep) error
}

// Engine is the interaction decision engine: it executes planned intents
// against the browser while enforcing the safety contract. It decides how,
// never what; suspensions for operator input are normal results, not
// errors.
type Engine struct {
	cfg       *config.Config
	sessions  SessionSource
	cache     *observe.Cache
	observer  Observer
	performer Performer
	completer FormCompleter
	gate      *gate.Gate
	resolver  *form.Resolver
	recorder  Recorder
	logger    *zap.Logger
}

// managerSource adapts the concrete session manager to SessionSource.
type managerSource struct {
	mgr *browser.Manager
}

func (s *managerSource) Acquire(ctx context.Context, mode schemas.ConnectMode) (schemas.BrowserSession, error) {
	return s.mgr.Acquire(ctx, mode)
}

func (s *managerSource) Release(explicit bool) error { return s.mgr.Release(explicit) }

// New wires the engine from its production parts.
func New(cfg *config.Config, mgr *browser.Manager, store *docstore.Store, recorder Recorder, logger *zap.Logger) *Engine {
	cache := observe.NewCache(logger)
	g := gate.New(logger)

	var ref form.Reference
	if store != nil {
		ref = store
	}
	resolver := form.NewResolver(ref, logger)
	exec := action.NewExecutor(cfg, cache, g, logger)

	return &Engine{
		cfg:       cfg,
		sessions:  &managerSource{mgr: mgr},
		cache:     cache,
		observer:  observe.NewLadder(cache, logger),
		performer: exec,
		completer: form.NewCompleter(cfg.Engine, exec, resolver, logger),
		gate:      g,
		resolver:  resolver,
		recorder:  recorder,
		logger:    logger.Named("engine"),
	}
}

// Gate exposes the interaction gate for the operator surface.
func (e *Engine) Gate() *gate.Gate { return e.gate }

// Execute runs one intent and reports the outcome. Every call emits a
// progress step.
func (e *Engine) Execute(ctx context.Context, intent schemas.Intent) schemas.Outcome {
	outcome, sess := e.execute(ctx, intent)
	e.recordStep(ctx, sess, intent, outcome)
	return outcome
}

func (e *Engine) execute(ctx context.Context, intent schemas.Intent) (schemas.Outcome, schemas.BrowserSession) {
	if e.gate.State() == schemas.GateClosed {
		return schemas.Failed(schemas.ErrSessionClosed), nil
	}
	// While the gate is paused, every intent re-surfaces the pending
	// suspension; only explicit operator input moves the gate.
	if e.gate.State().Awaiting() {
		return e.suspendedOutcome(), nil
	}

	sess, err := e.sessions.Acquire(ctx, schemas.ModeAuto)
	if err != nil {
		return schemas.Failed(err), nil
	}

	switch intent.Type {
	case schemas.IntentClose:
		e.gate.Close()
		if err := e.sessions.Release(true); err != nil {
			return schemas.Failed(err), sess
		}
		return schemas.Completed(), sess

	case schemas.IntentCompleteForm:
		return e.completeForm(ctx, sess, intent), sess

	case schemas.IntentSubmit:
		return e.submit(ctx, sess, intent), sess

	default:
		return e.perform(ctx, sess, intent), sess
	}
}

// perform runs an executable intent with the retry policy: a stale target
// or wait timeout is retried exactly once after re-observation, with the
// visual level unlocked on the retry.
func (e *Engine) perform(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent) schemas.Outcome {
	const maxAttempts = 2

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var target *schemas.ElementTarget
		if !intent.Target.Empty() && intent.Type != schemas.IntentWait {
			obs, resolved, err := e.observer.Observe(ctx, sess, intent, observe.Options{AllowVisual: attempt > 0})
			if err != nil {
				return schemas.Failed(err)
			}
			if reason := detectChallenge(obs); reason != "" {
				return e.pauseForIntervention(reason)
			}
			target = resolved
		}

		err := e.performer.Perform(ctx, sess, intent, target)
		if err == nil {
			return schemas.Completed()
		}
		lastErr = err

		var staleErr *schemas.StaleTargetError
		var toErr *schemas.TimeoutError
		switch {
		case errors.As(err, &staleErr):
			e.logger.Debug("Stale target, re-observing.", zap.Error(err))
		case errors.As(err, &toErr):
			e.logger.Debug("Wait timed out, re-observing.", zap.Error(err))
		case errors.Is(err, schemas.ErrGateBlocked):
			return e.suspendedOutcome()
		default:
			return schemas.Failed(err)
		}
	}
	return schemas.Failed(lastErr)
}

func (e *Engine) completeForm(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent) schemas.Outcome {
	formID := intent.Value
	if formID == "" {
		formID = "form"
	}

	pageURL := e.currentURL(ctx, sess)

	// A login wall or captcha between navigation and the form would
	// otherwise surface as a failed audit; check the page before auditing.
	if obs, err := e.observer.Snapshot(ctx, sess); err == nil {
		if obs.URL == "" {
			obs.URL = pageURL
		}
		if reason := detectChallenge(obs); reason != "" {
			return e.pauseForIntervention(reason)
		}
	}

	outcome, err := e.completer.Complete(ctx, sess, formID, pageURL)
	if err != nil {
		return outcome
	}
	if outcome.Status == schemas.OutcomeNeedsInput {
		if gateErr := e.gate.RequestAnswer(outcome.Prompt); gateErr != nil {
			return schemas.Failed(gateErr)
		}
	}
	return outcome
}

// submit enforces the pre-submission confirmation: the first submit intent
// always pauses; only after an explicit ConfirmSubmit does the next one
// click through, spending the one-shot arm.
func (e *Engine) submit(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent) schemas.Outcome {
	if !e.gate.ConsumeSubmitArm() {
		summary := fmt.Sprintf("ready to submit via %s", describeTarget(intent.Target))
		if err := e.gate.RequestSubmitConfirmation(summary); err != nil {
			return schemas.Failed(err)
		}
		return schemas.NeedsConfirmation()
	}

	click := schemas.Intent{Type: schemas.IntentClick, Target: intent.Target}
	if click.Target.Empty() {
		click.Target = schemas.TargetSpec{Role: "button", Text: "Submit"}
	}
	return e.perform(ctx, sess, click)
}

// AnswerQuestion resumes a question pause. The answer is recorded as an
// explicit instruction so refills and later forms honor it; re-answering
// the same question replaces the earlier instruction.
func (e *Engine) AnswerQuestion(matches, value string) error {
	if err := e.gate.ProvideAnswer(value); err != nil {
		return err
	}
	e.resolver.AddInstruction(schemas.OperatorInstruction{Matches: matches, Value: value})
	return nil
}

// ResumeIntervention resumes a manual-intervention pause. The operator may
// have changed anything, so cached observations are discarded wholesale.
func (e *Engine) ResumeIntervention() error {
	if err := e.gate.ResumeAfterIntervention(); err != nil {
		return err
	}
	e.cache.Invalidate(observe.ReasonOperatorReverify)
	return nil
}

// ConfirmSubmit arms exactly one submission.
func (e *Engine) ConfirmSubmit() error { return e.gate.ConfirmSubmit() }

// DeclineSubmit resumes without submitting.
func (e *Engine) DeclineSubmit() error { return e.gate.DeclineSubmit() }

// Pages lists the session's open pages, e.g. after a provider opened the
// application in a popup.
func (e *Engine) Pages(ctx context.Context) ([]schemas.PageInfo, error) {
	sess, err := e.sessions.Acquire(ctx, schemas.ModeAuto)
	if err != nil {
		return nil, err
	}
	return sess.Pages(ctx)
}

// Snapshot captures the current page's interactive surface, for the
// planner and the operator view.
func (e *Engine) Snapshot(ctx context.Context) (schemas.PageObservation, error) {
	sess, err := e.sessions.Acquire(ctx, schemas.ModeAuto)
	if err != nil {
		return schemas.PageObservation{}, err
	}
	return e.observer.Snapshot(ctx, sess)
}

// SelectPage switches the engine's focus to another page.
func (e *Engine) SelectPage(ctx context.Context, targetID string) error {
	sess, err := e.sessions.Acquire(ctx, schemas.ModeAuto)
	if err != nil {
		return err
	}
	return sess.SelectPage(ctx, targetID)
}

func (e *Engine) suspendedOutcome() schemas.Outcome {
	switch e.gate.State() {
	case schemas.GateAwaitingOperatorAnswer:
		return schemas.NeedsInput(e.gate.Prompt())
	case schemas.GateAwaitingManualIntervention:
		return schemas.NeedsIntervention(e.gate.Prompt())
	case schemas.GateAwaitingSubmitConfirmation:
		return schemas.NeedsConfirmation()
	}
	return schemas.Failed(schemas.ErrGateBlocked)
}

func (e *Engine) pauseForIntervention(reason string) schemas.Outcome {
	if err := e.gate.RequestIntervention(reason); err != nil {
		return schemas.Failed(err)
	}
	return schemas.NeedsIntervention(reason)
}

func (e *Engine) currentURL(ctx context.Context, sess schemas.BrowserSession) string {
	pages, err := sess.Pages(ctx)
	if err != nil {
		return ""
	}
	for _, p := range pages {
		if p.Focused {
			return p.URL
		}
	}
	if len(pages) > 0 {
		return pages[0].URL
	}
	return ""
}

func (e *Engine) recordStep(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, outcome schemas.Outcome) {
	step := schemas.ProgressStep{
		StepID: uuid.NewString(),
		At:     time.Now().UTC(),
		Intent: intent.Type,
		Gate:   e.gate.State(),
		Status: outcome.Status,
	}
	if sess != nil {
		step.SessionID = sess.ID()
		step.DOMVersion = sess.DOMVersion()
	}
	switch {
	case outcome.Err != nil:
		step.Detail = fmt.Sprintf("%s: %s", schemas.CodeOf(outcome.Err), outcome.Err)
	case outcome.Prompt != "":
		step.Detail = outcome.Prompt
	case outcome.Reason != "":
		step.Detail = outcome.Reason
	}

	e.logger.Info("Step executed.",
		zap.String("step_id", step.StepID),
		zap.String("intent", string(step.Intent)),
		zap.String("status", string(step.Status)),
		zap.String("gate", string(step.Gate)),
		zap.Uint64("dom_version", step.DOMVersion))

	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordStep(ctx, step); err != nil {
		// The ledger is an audit aid; losing a row must not stop the session.
		e.logger.Warn("Failed to persist progress step.", zap.Error(err))
	}
}

func describeTarget(spec schemas.TargetSpec) string {
	switch {
	case spec.Text != "":
		return fmt.Sprintf("%q", spec.Text)
	case spec.Locator != "":
		return spec.Locator
	case spec.Name != "":
		return spec.Name
	}
	return "the submit control"
}
