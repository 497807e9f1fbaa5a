// internal/gate/gate.go
package gate

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Gate is the session's interaction gate: a small state machine that pauses
// autonomous interaction whenever the engine needs something only a human
// can provide. While the gate is in any awaiting state, mutating actions are
// refused; the page is the operator's until they explicitly hand it back.
//
// Transitions back to Running happen only through the explicit resume
// operations below. There is no timeout-based auto-resume.
type Gate struct {
	logger *zap.Logger

	mu     sync.Mutex
	state  schemas.GateState
	prompt string
	answer string
	// submitArmed is a one-shot permission minted by ConfirmSubmit and
	// consumed by the submit dispatch. It never survives a second submit.
	submitArmed bool
}

func New(logger *zap.Logger) *Gate {
	return &Gate{
		logger: logger.Named("gate"),
		state:  schemas.GateRunning,
	}
}

// State returns the current gate position.
func (g *Gate) State() schemas.GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Prompt returns the pending question or intervention reason, if any.
func (g *Gate) Prompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompt
}

// AllowAction is the executor's pre-dispatch check. Reads are always
// allowed; mutating actions require the gate to be running.
func (g *Gate) AllowAction(t schemas.ActionType) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == schemas.GateClosed {
		return schemas.ErrSessionClosed
	}
	if t.Mutating() && g.state.Awaiting() {
		return fmt.Errorf("%w: %s while %s", schemas.ErrGateBlocked, t, g.state)
	}
	return nil
}

// RequestAnswer pauses the session on a question the engine cannot answer
// from its documents or instructions.
func (g *Gate) RequestAnswer(prompt string) error {
	return g.pause(schemas.GateAwaitingOperatorAnswer, prompt)
}

// RequestIntervention pauses the session for human action on the page
// itself, e.g. an authentication or verification challenge.
func (g *Gate) RequestIntervention(reason string) error {
	return g.pause(schemas.GateAwaitingManualIntervention, reason)
}

// RequestSubmitConfirmation pauses the session before an irreversible
// submission. This pause is unconditional; no configuration bypasses it.
func (g *Gate) RequestSubmitConfirmation(summary string) error {
	return g.pause(schemas.GateAwaitingSubmitConfirmation, summary)
}

func (g *Gate) pause(to schemas.GateState, prompt string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == schemas.GateClosed {
		return schemas.ErrSessionClosed
	}
	if g.state != schemas.GateRunning {
		return fmt.Errorf("cannot pause for %s: gate already %s", to, g.state)
	}
	g.state = to
	g.prompt = prompt
	g.logger.Info("Gate paused.", zap.String("state", string(to)), zap.String("prompt", prompt))
	return nil
}

// ProvideAnswer resumes from an operator-answer pause. The answer is held
// for exactly one TakeAnswer call.
func (g *Gate) ProvideAnswer(answer string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != schemas.GateAwaitingOperatorAnswer {
		return fmt.Errorf("no pending question: gate is %s", g.state)
	}
	g.state = schemas.GateRunning
	g.prompt = ""
	g.answer = answer
	g.logger.Info("Operator answer received, gate resumed.")
	return nil
}

// TakeAnswer returns and clears the most recent operator answer.
func (g *Gate) TakeAnswer() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.answer == "" {
		return "", false
	}
	a := g.answer
	g.answer = ""
	return a, true
}

// ResumeAfterIntervention resumes from a manual-intervention pause. The
// operator has touched the page, so the caller must re-observe from scratch.
func (g *Gate) ResumeAfterIntervention() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != schemas.GateAwaitingManualIntervention {
		return fmt.Errorf("no pending intervention: gate is %s", g.state)
	}
	g.state = schemas.GateRunning
	g.prompt = ""
	g.logger.Info("Manual intervention finished, gate resumed.")
	return nil
}

// ConfirmSubmit resumes from a submit-confirmation pause and arms exactly
// one submission.
func (g *Gate) ConfirmSubmit() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != schemas.GateAwaitingSubmitConfirmation {
		return fmt.Errorf("no pending submission: gate is %s", g.state)
	}
	g.state = schemas.GateRunning
	g.prompt = ""
	g.submitArmed = true
	g.logger.Info("Submission confirmed by operator.")
	return nil
}

// DeclineSubmit resumes from a submit-confirmation pause without arming the
// submission; the engine reports the task back unsubmitted.
func (g *Gate) DeclineSubmit() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != schemas.GateAwaitingSubmitConfirmation {
		return fmt.Errorf("no pending submission: gate is %s", g.state)
	}
	g.state = schemas.GateRunning
	g.prompt = ""
	g.submitArmed = false
	g.logger.Info("Submission declined by operator.")
	return nil
}

// ConsumeSubmitArm spends the one-shot submit permission. A submit dispatch
// without a prior ConfirmSubmit must fail.
func (g *Gate) ConsumeSubmitArm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.submitArmed {
		return false
	}
	g.submitArmed = false
	return true
}

// Close moves the gate to its terminal state. Only an explicit operator
// instruction closes a session; task completion never does.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == schemas.GateClosed {
		return
	}
	g.state = schemas.GateClosed
	g.prompt = ""
	g.submitArmed = false
	g.logger.Info("Gate closed.")
}
