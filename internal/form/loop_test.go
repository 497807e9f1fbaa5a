// internal/form/loop_test.go
package form

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

func newTestCompleter(t *testing.T, auditor Auditor, performer Performer, resolver *Resolver) *Completer {
	t.Helper()
	cfg := config.NewDefaultConfig()
	c := NewCompleter(cfg.Engine, performer, resolver, zap.NewNop())
	c.auditorFor = func(string) Auditor { return auditor }
	return c
}

func TestCompleteFinishesOnCleanAudit(t *testing.T) {
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{FormID: "#apply-form", Total: 4, Unanswered: 0},
	}}
	performer := &recordingPerformer{}
	c := newTestCompleter(t, auditor, performer, NewResolver(mapReference{}, zap.NewNop()))

	outcome, err := c.Complete(context.Background(), &fakeSession{}, "#apply-form", "https://example.com/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	assert.Empty(t, performer.calls, "a clean form needs no fills")
}

func TestCompleteFillsThenReaudits(t *testing.T) {
	questions := []schemas.FormQuestion{
		{ID: "relocate", Prompt: "Are you willing to relocate?", Kind: schemas.KindWillingness, Control: "select", Locator: "#relocate", Options: []string{"Yes", "No"}},
		{ID: "citizenship", Prompt: "What is your country of citizenship?", Kind: schemas.KindFactual, Control: "input", Locator: "input[name=\"citizenship\"]"},
	}
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{FormID: "#apply-form", Total: 2, Unanswered: 2, Unresolved: questions},
		{FormID: "#apply-form", Total: 2, Unanswered: 0},
	}}
	performer := &recordingPerformer{}
	resolver := NewResolver(mapReference{"citizen": "Germany"}, zap.NewNop())
	c := newTestCompleter(t, auditor, performer, resolver)

	outcome, err := c.Complete(context.Background(), &fakeSession{}, "#apply-form", "https://example.com/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeCompleted, outcome.Status)
	assert.Equal(t, 2, auditor.calls, "completion is decided by re-audit, not by dispatch success")

	require.Len(t, performer.calls, 2)
	assert.Equal(t, schemas.IntentTypeKeys, performer.calls[0].intent.Type, "selects answer by key input")
	assert.Equal(t, "Yes", performer.calls[0].intent.Value)
	assert.Equal(t, schemas.IntentFill, performer.calls[1].intent.Type)
	assert.Equal(t, "Germany", performer.calls[1].intent.Value)
}

func TestTargetsAreMintedAtCurrentVersion(t *testing.T) {
	questions := []schemas.FormQuestion{
		{ID: "a", Prompt: "Are you willing to relocate?", Kind: schemas.KindWillingness, Control: "input", Locator: "#a"},
		{ID: "b", Prompt: "Are you willing to travel?", Kind: schemas.KindWillingness, Control: "input", Locator: "#b"},
	}
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{Total: 2, Unanswered: 2, Unresolved: questions},
		{Total: 2, Unanswered: 0},
	}}
	performer := &recordingPerformer{}
	c := newTestCompleter(t, auditor, performer, NewResolver(mapReference{}, zap.NewNop()))

	sess := &fakeSession{}
	_, err := c.Complete(context.Background(), sess, "#f", "https://example.com")
	require.NoError(t, err)

	// Each fill bumps the version; the next target must carry the new one.
	require.Len(t, performer.calls, 2)
	assert.Equal(t, uint64(0), performer.calls[0].version)
	assert.Equal(t, uint64(1), performer.calls[1].version)
}

func TestRadioAnswerClicksTheMatchingOption(t *testing.T) {
	questions := []schemas.FormQuestion{
		{ID: "sponsorship", Prompt: "Will you require visa sponsorship?", Kind: schemas.KindFactual,
			Control: "radio", Locator: `input[name="sponsorship"]`, Options: []string{"Yes", "No"}},
	}
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{Total: 1, Unanswered: 1, Unresolved: questions},
		{Total: 1, Unanswered: 0},
	}}
	performer := &recordingPerformer{}
	resolver := NewResolver(mapReference{"sponsorship": "No"}, zap.NewNop())
	c := newTestCompleter(t, auditor, performer, resolver)

	_, err := c.Complete(context.Background(), &fakeSession{}, "#f", "https://example.com")
	require.NoError(t, err)

	require.Len(t, performer.calls, 1)
	assert.Equal(t, schemas.IntentClick, performer.calls[0].intent.Type)
	assert.Equal(t, `input[name="sponsorship"][value="No"]`, performer.calls[0].locator)
}

func TestCompleteFillsResolvableBeforeSuspending(t *testing.T) {
	questions := []schemas.FormQuestion{
		{ID: "relocate", Prompt: "Are you willing to relocate?", Kind: schemas.KindWillingness, Control: "input", Locator: "#relocate"},
		{ID: "clearance", Prompt: "Do you hold an active security clearance?", Kind: schemas.KindUnknown, Control: "input", Locator: "#clearance"},
	}
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{Total: 2, Unanswered: 2, Unresolved: questions},
	}}
	performer := &recordingPerformer{}
	c := newTestCompleter(t, auditor, performer, NewResolver(mapReference{}, zap.NewNop()))

	outcome, err := c.Complete(context.Background(), &fakeSession{}, "#f", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeNeedsInput, outcome.Status)
	assert.Equal(t, "Do you hold an active security clearance?", outcome.Prompt)
	require.Len(t, outcome.Questions, 1)
	assert.Equal(t, "clearance", outcome.Questions[0].ID)

	// The willingness question was still filled before suspending.
	require.Len(t, performer.calls, 1)
	assert.Equal(t, "Yes", performer.calls[0].intent.Value)
}

func TestCompleteExhaustsRoundBound(t *testing.T) {
	// The audit keeps reporting the same resolvable question: a form that
	// rejects or reintroduces answers must not loop forever.
	questions := []schemas.FormQuestion{
		{ID: "relocate", Prompt: "Are you willing to relocate?", Kind: schemas.KindWillingness, Control: "input", Locator: "#relocate"},
	}
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{FormID: "#f", Total: 1, Unanswered: 1, Unresolved: questions},
	}}
	performer := &recordingPerformer{}
	cfg := config.NewDefaultConfig()
	c := NewCompleter(cfg.Engine, performer, NewResolver(mapReference{}, zap.NewNop()), zap.NewNop())
	c.auditorFor = func(string) Auditor { return auditor }

	outcome, err := c.Complete(context.Background(), &fakeSession{}, "#f", "https://example.com")
	require.Error(t, err)
	assert.Equal(t, schemas.OutcomeFailed, outcome.Status)

	var formErr *schemas.IncompleteFormError
	require.ErrorAs(t, err, &formErr)
	assert.Equal(t, cfg.Engine.MaxFillRounds, formErr.Rounds)
	assert.Len(t, formErr.Unresolved, 1)
	assert.Len(t, performer.calls, cfg.Engine.MaxFillRounds)

	// Refills are idempotent at the value level: every round dispatched the
	// same answer rather than accumulating text.
	for _, call := range performer.calls {
		assert.Equal(t, "Yes", call.intent.Value)
	}
}

func TestNegativeCheckboxIsLeftUnchecked(t *testing.T) {
	questions := []schemas.FormQuestion{
		{ID: "newsletter", Prompt: "Are you open to receiving our newsletter?", Kind: schemas.KindWillingness, Control: "checkbox", Locator: "#newsletter"},
	}
	auditor := &scriptedAuditor{results: []schemas.FormAuditResult{
		{Total: 1, Unanswered: 1, Unresolved: questions},
		{Total: 1, Unanswered: 0},
	}}
	performer := &recordingPerformer{}
	resolver := NewResolver(mapReference{}, zap.NewNop())
	resolver.AddInstruction(schemas.OperatorInstruction{Matches: "newsletter", Value: "No"})
	c := newTestCompleter(t, auditor, performer, resolver)

	_, err := c.Complete(context.Background(), &fakeSession{}, "#f", "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, performer.calls, "declining a checkbox means not clicking it")
}
