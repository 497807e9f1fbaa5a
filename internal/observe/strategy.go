// internal/observe/strategy.go
package observe

import (
	"context"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Strategy is one rung of the capture ladder: a capability that captures a
// page observation at a fixed fidelity level. Strategies are held in
// ascending cost order; the ladder accepts the first whose result resolves
// the intent's target.
type Strategy interface {
	Level() schemas.FidelityLevel
	Capture(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, detail schemas.DetailLevel) (schemas.PageObservation, error)
}

// resolve matches the intent's target spec against an observation's
// elements. Zero matches is ErrNoResolution (escalate), more than one is
// AmbiguousTargetError (escalate, never retry the same level).
func resolve(obs schemas.PageObservation, spec schemas.TargetSpec) (*schemas.ElementTarget, error) {
	if spec.Empty() {
		return nil, schemas.ErrNoResolution
	}

	var matches []schemas.AddressableElement
	for _, el := range obs.Elements {
		if matchElement(el, spec) {
			matches = append(matches, el)
		}
	}

	switch len(matches) {
	case 0:
		return nil, schemas.ErrNoResolution
	case 1:
		return targetFor(matches[0], obs), nil
	default:
		return nil, &schemas.AmbiguousTargetError{Level: obs.Level, Matches: len(matches), Spec: spec}
	}
}

func matchElement(el schemas.AddressableElement, spec schemas.TargetSpec) bool {
	if spec.Locator != "" {
		return el.Locator == spec.Locator
	}
	if spec.Role != "" && !strings.EqualFold(el.Role, spec.Role) {
		return false
	}
	if spec.Name != "" && !strings.EqualFold(el.Name, spec.Name) {
		return false
	}
	if spec.Text != "" && !strings.Contains(strings.ToLower(el.Text), strings.ToLower(spec.Text)) {
		return false
	}
	return true
}

// targetFor builds the resolved target. Visual observations hand out a
// coordinate in their declared space; DOM observations hand out the locator.
func targetFor(el schemas.AddressableElement, obs schemas.PageObservation) *schemas.ElementTarget {
	t := &schemas.ElementTarget{DOMVersion: obs.DOMVersion}
	if obs.Level == schemas.FidelityVisual && el.Box != nil {
		center := el.Box.Center()
		t.Coord = &center
		t.Space = obs.Space
		return t
	}
	t.Locator = el.Locator
	return t
}
