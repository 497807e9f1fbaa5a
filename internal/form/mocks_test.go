// internal/form/mocks_test.go
package form

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

type fakeSession struct {
	version atomic.Uint64
}

func (f *fakeSession) ID() string               { return "fake" }
func (f *fakeSession) State() schemas.ConnState { return schemas.ConnAttached }
func (f *fakeSession) Ctx() context.Context     { return context.Background() }
func (f *fakeSession) DOMVersion() uint64       { return f.version.Load() }
func (f *fakeSession) BumpDOMVersion() uint64   { return f.version.Add(1) }
func (f *fakeSession) Pages(context.Context) ([]schemas.PageInfo, error) {
	return nil, nil
}
func (f *fakeSession) SelectPage(context.Context, string) error { return nil }

// scriptedAuditor returns its results in order, repeating the last one.
type scriptedAuditor struct {
	results []schemas.FormAuditResult
	calls   int
}

func (a *scriptedAuditor) Audit(_ context.Context, _ schemas.BrowserSession, _ string) (schemas.FormAuditResult, error) {
	i := a.calls
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	a.calls++
	return a.results[i], nil
}

type dispatched struct {
	intent  schemas.Intent
	locator string
	version uint64
}

// recordingPerformer captures every dispatch and mimics the executor's
// version bump after a mutating action.
type recordingPerformer struct {
	calls []dispatched
	err   error
}

func (p *recordingPerformer) Perform(_ context.Context, sess schemas.BrowserSession, intent schemas.Intent, target *schemas.ElementTarget) error {
	if p.err != nil {
		return p.err
	}
	d := dispatched{intent: intent}
	if target != nil {
		d.locator = target.Locator
		d.version = target.DOMVersion
	}
	p.calls = append(p.calls, d)
	sess.BumpDOMVersion()
	return nil
}

// mapReference serves factual answers by substring match on the prompt.
type mapReference map[string]string

func (m mapReference) Lookup(prompt string) (string, bool) {
	p := strings.ToLower(prompt)
	for key, value := range m {
		if strings.Contains(p, key) {
			return value, true
		}
	}
	return "", false
}
