// internal/engine/engine_test.go
package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/form"
	"github.com/xkilldash9x/formpilot/internal/gate"
	"github.com/xkilldash9x/formpilot/internal/observe"
)

type testParts struct {
	sessions  *fakeSessions
	observer  *fakeObserver
	performer *fakePerformer
	completer *fakeCompleter
	recorder  *fakeRecorder
	resolver  *form.Resolver
}

func newTestEngine(t *testing.T) (*Engine, *testParts) {
	t.Helper()
	parts := &testParts{
		sessions: &fakeSessions{sess: &fakeSession{}},
		observer: &fakeObserver{results: []observeResult{
			{target: &schemas.ElementTarget{Locator: "#apply"}},
		}},
		performer: &fakePerformer{},
		completer: &fakeCompleter{outcome: schemas.Completed()},
		recorder:  &fakeRecorder{},
		resolver:  form.NewResolver(nil, zap.NewNop()),
	}
	e := &Engine{
		cfg:       config.NewDefaultConfig(),
		sessions:  parts.sessions,
		cache:     observe.NewCache(zap.NewNop()),
		observer:  parts.observer,
		performer: parts.performer,
		completer: parts.completer,
		gate:      gate.New(zap.NewNop()),
		resolver:  parts.resolver,
		recorder:  parts.recorder,
		logger:    zap.NewNop(),
	}
	return e, parts
}

func clickApply() schemas.Intent {
	return schemas.Intent{Type: schemas.IntentClick, Target: schemas.TargetSpec{Role: "button", Text: "Apply"}}
}

func TestExecuteResolvesThenPerforms(t *testing.T) {
	e, parts := newTestEngine(t)

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	require.Len(t, parts.performer.intents, 1)
	require.NotNil(t, parts.performer.targets[0])
	assert.Equal(t, "#apply", parts.performer.targets[0].Locator)
}

func TestStaleTargetRetriedExactlyOnce(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.performer.errs = []error{
		&schemas.StaleTargetError{TargetVersion: 1, CurrentVersion: 2},
		nil,
	}

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	assert.Len(t, parts.performer.intents, 2)
	assert.Len(t, parts.observer.opts, 2, "retry must re-observe")
}

func TestStaleTwiceFails(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.performer.errs = []error{
		&schemas.StaleTargetError{TargetVersion: 1, CurrentVersion: 2},
		&schemas.StaleTargetError{TargetVersion: 2, CurrentVersion: 3},
	}

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeFailed, outcome.Status)

	var staleErr *schemas.StaleTargetError
	assert.ErrorAs(t, outcome.Err, &staleErr)
	assert.Len(t, parts.performer.intents, 2, "exactly one retry")
}

func TestRetryUnlocksVisual(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.performer.errs = []error{
		&schemas.TimeoutError{Condition: "#apply"},
		nil,
	}

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	require.Len(t, parts.observer.opts, 2)
	assert.False(t, parts.observer.opts[0].AllowVisual)
	assert.True(t, parts.observer.opts[1].AllowVisual, "a failed DOM action unlocks spatial targeting")
}

func TestNonRetryableErrorFailsImmediately(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.performer.errs = []error{assert.AnError}

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeFailed, outcome.Status)
	assert.Len(t, parts.performer.intents, 1)
}

func TestChallengePausesForIntervention(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.observer.results = []observeResult{{
		obs: schemas.PageObservation{
			URL: "https://example.com/jobs/1",
			Elements: []schemas.AddressableElement{
				{Role: "heading", Text: "Verify you are human"},
			},
		},
		target: &schemas.ElementTarget{Locator: "#apply"},
	}}

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeNeedsIntervention, outcome.Status)
	assert.Equal(t, schemas.GateAwaitingManualIntervention, e.gate.State())
	assert.Empty(t, parts.performer.intents, "nothing is dispatched into a challenge")

	// Resuming clears the cache so everything is re-observed.
	e.cache.Put(schemas.PageObservation{Level: schemas.FidelityStructural})
	require.NoError(t, e.ResumeIntervention())
	assert.Equal(t, schemas.GateRunning, e.gate.State())
	assert.Zero(t, e.cache.Len())
}

func TestSuspendedEngineShortCircuits(t *testing.T) {
	e, parts := newTestEngine(t)
	require.NoError(t, e.gate.RequestAnswer("What is your notice period?"))

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeNeedsInput, outcome.Status)
	assert.Equal(t, "What is your notice period?", outcome.Prompt)
	assert.Empty(t, parts.performer.intents)
}

func TestCompleteFormPausesGateOnNeedsInput(t *testing.T) {
	e, parts := newTestEngine(t)
	question := schemas.FormQuestion{ID: "notice", Prompt: "What is your notice period?", Kind: schemas.KindFactual}
	parts.completer.outcome = schemas.NeedsInput(question.Prompt, question)
	parts.sessions.sess.pages = []schemas.PageInfo{{TargetID: "t1", URL: "https://boards.greenhouse.io/acme/jobs/1", Focused: true}}

	outcome := e.Execute(context.Background(), schemas.Intent{Type: schemas.IntentCompleteForm, Value: "#application_form"})
	assert.Equal(t, schemas.OutcomeNeedsInput, outcome.Status)
	assert.Equal(t, schemas.GateAwaitingOperatorAnswer, e.gate.State())
	assert.Equal(t, "#application_form", parts.completer.formID)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1", parts.completer.pageURL)

	// The operator's answer resumes the gate and becomes a standing
	// instruction for the resolver.
	require.NoError(t, e.AnswerQuestion("notice period", "3 months"))
	assert.Equal(t, schemas.GateRunning, e.gate.State())

	answer, ok := parts.resolver.Resolve(question)
	require.True(t, ok)
	assert.Equal(t, "3 months", answer.Value)
	assert.Equal(t, "instruction", answer.Source)
}

func TestCompleteFormPausesOnChallengeBeforeAudit(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.observer.results = []observeResult{{
		obs: schemas.PageObservation{
			URL: "https://example.com/jobs/1",
			Elements: []schemas.AddressableElement{
				{Role: "heading", Text: "Verify you are human"},
			},
		},
	}}

	outcome := e.Execute(context.Background(), schemas.Intent{Type: schemas.IntentCompleteForm, Value: "#application_form"})
	assert.Equal(t, schemas.OutcomeNeedsIntervention, outcome.Status)
	assert.Equal(t, schemas.GateAwaitingManualIntervention, e.gate.State())
	assert.Zero(t, parts.completer.calls, "no audit runs against a challenge page")
}

func TestCompleteFormPausesOnLoginURL(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.sessions.sess.pages = []schemas.PageInfo{{TargetID: "t1", URL: "https://example.com/login?next=%2Fjobs%2F1", Focused: true}}
	parts.observer.results = []observeResult{{obs: schemas.PageObservation{}}}

	outcome := e.Execute(context.Background(), schemas.Intent{Type: schemas.IntentCompleteForm})
	assert.Equal(t, schemas.OutcomeNeedsIntervention, outcome.Status)
	assert.Zero(t, parts.completer.calls)
}

func TestSubmitAlwaysPausesFirst(t *testing.T) {
	e, parts := newTestEngine(t)
	submit := schemas.Intent{Type: schemas.IntentSubmit, Target: schemas.TargetSpec{Role: "button", Text: "Submit application"}}

	outcome := e.Execute(context.Background(), submit)
	assert.Equal(t, schemas.OutcomeNeedsConfirmation, outcome.Status)
	assert.Equal(t, schemas.GateAwaitingSubmitConfirmation, e.gate.State())
	assert.Empty(t, parts.performer.intents, "no click before confirmation")

	// Re-executing while paused re-surfaces the same suspension.
	outcome = e.Execute(context.Background(), submit)
	assert.Equal(t, schemas.OutcomeNeedsConfirmation, outcome.Status)
	assert.Empty(t, parts.performer.intents)

	require.NoError(t, e.ConfirmSubmit())
	outcome = e.Execute(context.Background(), submit)
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	require.Len(t, parts.performer.intents, 1)
	assert.Equal(t, schemas.IntentClick, parts.performer.intents[0].Type)
}

func TestDeclinedSubmitDoesNotClick(t *testing.T) {
	e, parts := newTestEngine(t)
	submit := schemas.Intent{Type: schemas.IntentSubmit}

	e.Execute(context.Background(), submit)
	require.NoError(t, e.DeclineSubmit())

	// The next submit intent pauses again instead of clicking through.
	outcome := e.Execute(context.Background(), submit)
	assert.Equal(t, schemas.OutcomeNeedsConfirmation, outcome.Status)
	assert.Empty(t, parts.performer.intents)
}

func TestCloseIsExplicitAndTerminal(t *testing.T) {
	e, parts := newTestEngine(t)

	outcome := e.Execute(context.Background(), schemas.Intent{Type: schemas.IntentClose})
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	assert.Equal(t, []bool{true}, parts.sessions.releases)
	assert.Equal(t, schemas.GateClosed, e.gate.State())

	outcome = e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, schemas.ErrSessionClosed)
}

func TestTaskCompletionNeverReleasesSession(t *testing.T) {
	e, parts := newTestEngine(t)

	e.Execute(context.Background(), clickApply())
	assert.Empty(t, parts.sessions.releases, "completion must not close or release the session")
}

func TestEveryExecutionRecordsAStep(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.sessions.sess.version.Add(4)

	e.Execute(context.Background(), clickApply())
	e.Execute(context.Background(), schemas.Intent{Type: schemas.IntentSubmit})

	require.Len(t, parts.recorder.steps, 2)
	first := parts.recorder.steps[0]
	assert.NotEmpty(t, first.StepID)
	assert.Equal(t, "sess-test", first.SessionID)
	assert.Equal(t, schemas.IntentClick, first.Intent)
	assert.Equal(t, schemas.OutcomeCompleted, first.Status)
	assert.GreaterOrEqual(t, first.DOMVersion, uint64(4))

	second := parts.recorder.steps[1]
	assert.Equal(t, schemas.OutcomeNeedsConfirmation, second.Status)
	assert.Equal(t, schemas.GateAwaitingSubmitConfirmation, second.Gate)
}

func TestRecorderFailureDoesNotStopExecution(t *testing.T) {
	e, parts := newTestEngine(t)
	parts.recorder.err = assert.AnError

	outcome := e.Execute(context.Background(), clickApply())
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
}
