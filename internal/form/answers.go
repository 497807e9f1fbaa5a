// internal/form/answers.go
package form

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Reference looks up factual answers from the operator's reference
// documents. The docstore implements it.
type Reference interface {
	Lookup(prompt string) (string, bool)
}

// Resolver turns audited questions into answers. The policy is strict:
// willingness questions default to affirmative unless an explicit operator
// instruction says otherwise; factual questions come from reference data or
// instructions only, never from a guess. Anything unresolvable suspends the
// session with a question for the operator.
type Resolver struct {
	logger    *zap.Logger
	reference Reference

	mu           sync.Mutex
	instructions []schemas.OperatorInstruction
}

func NewResolver(reference Reference, logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:    logger.Named("resolver"),
		reference: reference,
	}
}

// AddInstruction appends an explicit operator statement. Instructions are
// kept in receipt order; restating the same pattern replaces the earlier
// value, while disagreeing instructions from different patterns make the
// question unresolvable.
func (r *Resolver) AddInstruction(instr schemas.OperatorInstruction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instr.Matches = strings.ToLower(strings.TrimSpace(instr.Matches))
	r.instructions = append(r.instructions, instr)
}

// Resolve returns the answer for a question, or ok=false when the question
// must go to the operator.
func (r *Resolver) Resolve(q schemas.FormQuestion) (schemas.Answer, bool) {
	prompt := strings.ToLower(q.Prompt)

	instr, found, conflict := r.lastMatching(prompt)
	if conflict {
		r.logger.Debug("Conflicting instructions match the question.",
			zap.String("question_id", q.ID))
		return schemas.Answer{}, false
	}
	if found {
		return r.toOption(q, schemas.Answer{QuestionID: q.ID, Value: instr.Value, Source: "instruction"})
	}

	switch q.Kind {
	case schemas.KindWillingness:
		return r.toOption(q, schemas.Answer{QuestionID: q.ID, Value: "Yes", Source: "default-affirmative"})
	case schemas.KindFactual, schemas.KindUnknown:
		if r.reference != nil {
			if value, found := r.reference.Lookup(q.Prompt); found {
				return r.toOption(q, schemas.Answer{QuestionID: q.ID, Value: value, Source: "reference"})
			}
		}
	}

	r.logger.Debug("Question unresolvable without operator input.",
		zap.String("question_id", q.ID),
		zap.String("kind", string(q.Kind)))
	return schemas.Answer{}, false
}

// lastMatching returns the newest instruction matching the prompt. A
// repeated instruction for the same pattern is an update and supersedes the
// earlier one; instructions from different patterns that disagree on the
// value are a conflict the operator has to settle, reported separately.
func (r *Resolver) lastMatching(prompt string) (newest schemas.OperatorInstruction, found, conflict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.instructions) - 1; i >= 0; i-- {
		instr := r.instructions[i]
		if instr.Matches == "" || !strings.Contains(prompt, instr.Matches) {
			continue
		}
		if !found {
			newest = instr
			found = true
			continue
		}
		if instr.Matches != newest.Matches && instr.Value != newest.Value {
			return schemas.OperatorInstruction{}, false, true
		}
	}
	return newest, found, false
}

// toOption maps a resolved value onto one of the control's selectable
// options. A value that maps onto no option is unresolvable; picking a
// near-miss on a constrained control would fabricate an answer.
func (r *Resolver) toOption(q schemas.FormQuestion, a schemas.Answer) (schemas.Answer, bool) {
	if len(q.Options) == 0 {
		return a, true
	}
	// A checkbox group's options are the inputs' value attributes ("on" for
	// the default), not answer candidates; checking or leaving the box is
	// decided by the answer itself.
	if q.Control == "checkbox" {
		return a, true
	}
	want := strings.ToLower(strings.TrimSpace(a.Value))
	for _, opt := range q.Options {
		if strings.ToLower(strings.TrimSpace(opt)) == want {
			a.Value = opt
			return a, true
		}
	}
	// Affirmative/negative synonyms cover the common yes/no select.
	for _, opt := range q.Options {
		lower := strings.ToLower(strings.TrimSpace(opt))
		if isAffirmative(want) && isAffirmative(lower) {
			a.Value = opt
			return a, true
		}
		if isNegative(want) && isNegative(lower) {
			a.Value = opt
			return a, true
		}
	}
	r.logger.Debug("Resolved value matches no option.",
		zap.String("question_id", q.ID),
		zap.String("value", a.Value))
	return schemas.Answer{}, false
}

func isAffirmative(s string) bool {
	switch s {
	case "yes", "y", "true", "i am willing", "willing", "agree", "i agree":
		return true
	}
	return false
}

func isNegative(s string) bool {
	switch s {
	case "no", "n", "false", "not willing", "unwilling", "disagree", "i disagree":
		return true
	}
	return false
}

// classifyPrompt assigns the question kind used by the resolution policy.
func classifyPrompt(prompt string) schemas.QuestionKind {
	p := strings.ToLower(prompt)
	for _, marker := range []string{"are you willing", "would you be willing", "are you comfortable", "willing to", "open to"} {
		if strings.Contains(p, marker) {
			return schemas.KindWillingness
		}
	}
	for _, marker := range []string{"citizen", "visa", "sponsorship", "authorized to work", "authorization to work", "right to work", "salary", "compensation", "notice period", "start date", "years of experience"} {
		if strings.Contains(p, marker) {
			return schemas.KindFactual
		}
	}
	return schemas.KindUnknown
}
