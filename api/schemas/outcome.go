// api/schemas/outcome.go
package schemas

import "time"

// GateState is the interaction gate's position. Exactly one is active per
// session; transitions back to Running happen only on explicit input.
type GateState string

const (
	GateRunning                    GateState = "running"
	GateAwaitingOperatorAnswer     GateState = "awaiting_operator_answer"
	GateAwaitingManualIntervention GateState = "awaiting_manual_intervention"
	GateAwaitingSubmitConfirmation GateState = "awaiting_submit_confirmation"
	GateClosed                     GateState = "closed"
)

// Awaiting reports whether the state blocks autonomous progress.
func (g GateState) Awaiting() bool {
	switch g {
	case GateAwaitingOperatorAnswer, GateAwaitingManualIntervention, GateAwaitingSubmitConfirmation:
		return true
	}
	return false
}

// OutcomeStatus tags the result of one engine invocation. Suspensions are
// expected and frequent, so they are result variants rather than errors;
// the orchestrator decides how to resume.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeNeedsInput blocks for an operator answer (question token).
	OutcomeNeedsInput OutcomeStatus = "needs_input"
	// OutcomeNeedsIntervention blocks for human action on the page, e.g. an
	// authentication or verification challenge (manual-intervention token).
	OutcomeNeedsIntervention OutcomeStatus = "needs_intervention"
	// OutcomeNeedsConfirmation blocks unconditionally before an irreversible
	// submit (pre-submission confirmation token).
	OutcomeNeedsConfirmation OutcomeStatus = "needs_confirmation"
	OutcomeFailed            OutcomeStatus = "failed"
)

// Outcome is the tagged result of executing one intent.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	// Prompt is set for NeedsInput: the question the operator must answer.
	Prompt string `json:"prompt,omitempty"`
	// Reason is set for NeedsIntervention/Failed.
	Reason string `json:"reason,omitempty"`
	// Questions carries the unresolved list for form failures/suspensions.
	Questions []FormQuestion `json:"questions,omitempty"`
	Err       error          `json:"-"`
}

func Completed() Outcome { return Outcome{Status: OutcomeCompleted} }

func NeedsInput(prompt string, qs ...FormQuestion) Outcome {
	return Outcome{Status: OutcomeNeedsInput, Prompt: prompt, Questions: qs}
}

func NeedsIntervention(reason string) Outcome {
	return Outcome{Status: OutcomeNeedsIntervention, Reason: reason}
}

func NeedsConfirmation() Outcome { return Outcome{Status: OutcomeNeedsConfirmation} }

func Failed(err error) Outcome {
	o := Outcome{Status: OutcomeFailed, Err: err}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// ProgressStep is the terse per-step record emitted for the operator and,
// when enabled, persisted to the step ledger.
type ProgressStep struct {
	StepID     string        `json:"step_id"`
	SessionID  string        `json:"session_id"`
	At         time.Time     `json:"at"`
	Intent     IntentType    `json:"intent"`
	Detail     string        `json:"detail,omitempty"`
	DOMVersion uint64        `json:"dom_version"`
	Gate       GateState     `json:"gate"`
	Status     OutcomeStatus `json:"status"`
}
