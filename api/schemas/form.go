// api/schemas/form.go
package schemas

// QuestionKind classifies a form question for the answer-resolution policy.
type QuestionKind string

const (
	// KindWillingness covers comfort/willingness questions ("Are you willing
	// to relocate?"). These default to affirmative unless the operator has
	// stated otherwise.
	KindWillingness QuestionKind = "willingness"
	// KindFactual covers eligibility facts (citizenship, visa status).
	// Answered strictly from reference data, never guessed.
	KindFactual QuestionKind = "factual"
	KindUnknown QuestionKind = "unknown"
)

// FormQuestion is one question discovered by an audit.
type FormQuestion struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Kind    QuestionKind `json:"kind"`
	Control string       `json:"control,omitempty"` // input, select, checkbox, radio, textarea, file
	Locator string       `json:"locator,omitempty"`
	// Options holds the selectable values for select/radio controls.
	Options []string `json:"options,omitempty"`
}

// FormAuditResult reports how much of a form remains unanswered.
// It is authoritative only for the DOM version it was taken against.
type FormAuditResult struct {
	FormID     string         `json:"form_id"`
	DOMVersion uint64         `json:"dom_version"`
	Total      int            `json:"total"`
	Unanswered int            `json:"unanswered"`
	Unresolved []FormQuestion `json:"unresolved,omitempty"`
}

// Complete reports whether every required question is answered.
func (r FormAuditResult) Complete() bool {
	return r.Unanswered == 0
}

// Answer is a resolved value for one question.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
	// Source records where the value came from, for the step ledger.
	Source string `json:"source"` // reference, instruction, default-affirmative, operator
}

// OperatorInstruction is one explicit statement from the operator that the
// answer resolver consults. Instructions are kept in receipt order; the
// last explicit instruction wins when two match the same question.
type OperatorInstruction struct {
	// Matches is a lowercase substring matched against question prompts.
	Matches string `json:"matches"`
	Value   string `json:"value"`
}
