// internal/form/loop.go
package form

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Performer dispatches one resolved intent. The action executor implements
// it; tests substitute a recorder.
type Performer interface {
	Perform(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, target *schemas.ElementTarget) error
}

// Completer drives the fill/audit cycle for one form: fill what resolves,
// re-audit, repeat. The audit is the arbiter of progress; the cycle never
// trusts that a dispatched fill landed. The round bound keeps a form that
// reintroduces questions faster than they can be answered from looping
// forever.
type Completer struct {
	cfg       config.EngineConfig
	performer Performer
	resolver  *Resolver
	logger    *zap.Logger
	// auditorFor selects the provider-specialized auditor for a page URL.
	auditorFor func(pageURL string) Auditor
}

func NewCompleter(cfg config.EngineConfig, performer Performer, resolver *Resolver, logger *zap.Logger) *Completer {
	log := logger.Named("form_loop")
	return &Completer{
		cfg:        cfg,
		performer:  performer,
		resolver:   resolver,
		logger:     log,
		auditorFor: func(pageURL string) Auditor { return SelectAuditor(pageURL, log) },
	}
}

// Complete runs the cycle until the audit comes back clean, a question needs
// the operator, or the round bound is exhausted.
func (c *Completer) Complete(ctx context.Context, sess schemas.BrowserSession, formID, pageURL string) (schemas.Outcome, error) {
	auditor := c.auditorFor(pageURL)

	var last schemas.FormAuditResult
	for round := 1; round <= c.cfg.MaxFillRounds; round++ {
		audit, err := auditor.Audit(ctx, sess, formID)
		if err != nil {
			return schemas.Failed(err), err
		}
		last = audit

		if audit.Complete() {
			c.logger.Info("Form complete.",
				zap.String("form_id", formID),
				zap.Int("rounds", round),
				zap.Int("total", audit.Total))
			return schemas.Completed(), nil
		}

		var unanswerable []schemas.FormQuestion
		for _, q := range audit.Unresolved {
			answer, ok := c.resolver.Resolve(q)
			if !ok {
				unanswerable = append(unanswerable, q)
				continue
			}
			if err := c.apply(ctx, sess, q, answer); err != nil {
				return schemas.Failed(err), err
			}
			c.logger.Debug("Answer applied.",
				zap.String("question_id", q.ID),
				zap.String("source", answer.Source))
		}

		// Everything resolvable is filled; what remains needs the operator.
		if len(unanswerable) > 0 {
			return schemas.NeedsInput(unanswerable[0].Prompt, unanswerable...), nil
		}
	}

	err := &schemas.IncompleteFormError{
		FormID:     formID,
		Rounds:     c.cfg.MaxFillRounds,
		Unresolved: last.Unresolved,
	}
	return schemas.Failed(err), err
}

// apply dispatches the control-appropriate intent for one answer. Targets
// are minted at the current DOM version so each fill passes the executor's
// staleness check after the previous fill's bump.
func (c *Completer) apply(ctx context.Context, sess schemas.BrowserSession, q schemas.FormQuestion, answer schemas.Answer) error {
	target := &schemas.ElementTarget{Locator: q.Locator, DOMVersion: sess.DOMVersion()}
	intent := schemas.Intent{Type: schemas.IntentFill, Value: answer.Value}

	switch q.Control {
	case "radio":
		target.Locator = fmt.Sprintf("%s[value=%q]", q.Locator, answer.Value)
		intent = schemas.Intent{Type: schemas.IntentClick}
	case "checkbox":
		// Checking is an action; staying unchecked is not.
		if !isAffirmative(strings.ToLower(strings.TrimSpace(answer.Value))) {
			return nil
		}
		intent = schemas.Intent{Type: schemas.IntentClick}
	case "select":
		// Key input selects the option by visible text without clearing,
		// which selects would reject.
		intent = schemas.Intent{Type: schemas.IntentTypeKeys, Value: answer.Value}
	case "file":
		intent = schemas.Intent{Type: schemas.IntentSetFiles, Files: []string{answer.Value}}
	}

	if err := c.performer.Perform(ctx, sess, intent, target); err != nil {
		return fmt.Errorf("failed to answer %q: %w", q.ID, err)
	}
	return nil
}
