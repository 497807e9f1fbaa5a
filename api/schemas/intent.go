// api/schemas/intent.go
package schemas

import "time"

// IntentType enumerates what the upstream planner can ask the engine to do.
// The engine only decides how to execute these safely, never what to do.
type IntentType string

const (
	IntentNavigate IntentType = "navigate"
	IntentClick    IntentType = "click"
	IntentFill     IntentType = "fill"
	IntentTypeKeys IntentType = "type"
	IntentSetFiles IntentType = "set_files"
	IntentScroll   IntentType = "scroll"
	IntentWait     IntentType = "wait"
	// IntentCompleteForm drives the fill/audit cycle for one form.
	IntentCompleteForm IntentType = "complete_form"
	// IntentSubmit is irreversible and always stops at the confirmation gate.
	IntentSubmit IntentType = "submit"
	// IntentClose tears the session down. Only an explicit operator
	// instruction produces it; task completion never does.
	IntentClose IntentType = "close"
)

// TargetSpec describes the element an intent wants, before resolution.
// Any combination of hints may be present; the ladder matches against them.
type TargetSpec struct {
	Locator string `json:"locator,omitempty"` // exact CSS/XPath if the planner knows it
	Role    string `json:"role,omitempty"`
	Text    string `json:"text,omitempty"`
	Name    string `json:"name,omitempty"` // form control name attribute
}

// Empty reports whether the spec carries no usable hint.
func (t TargetSpec) Empty() bool {
	return t.Locator == "" && t.Role == "" && t.Text == "" && t.Name == ""
}

// Intent is one unit of work handed to the engine by the planner.
type Intent struct {
	Type   IntentType `json:"type"`
	Target TargetSpec `json:"target,omitempty"`
	// Value carries the URL for navigate, the text for fill/type, the form
	// selector for complete_form, or the scroll delta ("down"/"up").
	Value string   `json:"value,omitempty"`
	Files []string `json:"files,omitempty"`
	// RequiresSpatial forces the visual level: coordinate interaction on a
	// canvas-like region that DOM locators cannot address.
	RequiresSpatial bool `json:"requires_spatial,omitempty"`
	// WaitTimeout bounds wait intents; zero means the configured default.
	WaitTimeout time.Duration `json:"wait_timeout,omitempty"`
}

// ActionType is the executor-level vocabulary, a strict subset of intents.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionFill     ActionType = "fill"
	ActionTypeKeys ActionType = "type"
	ActionSetFiles ActionType = "set_files"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
	ActionNavigate ActionType = "navigate"
)

// Mutating reports whether the action is classified as changing page state.
// Every mutating action bumps the DOM version so the cache invalidates
// eagerly instead of discovering staleness after a read.
func (a ActionType) Mutating() bool {
	switch a {
	case ActionClick, ActionFill, ActionTypeKeys, ActionSetFiles, ActionNavigate:
		return true
	}
	return false
}

// Action is one executor invocation.
type Action struct {
	Type    ActionType    `json:"type"`
	Value   string        `json:"value,omitempty"`
	Files   []string      `json:"files,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}
