// internal/engine/mocks_test.go
package engine

import (
	"context"
	"sync/atomic"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/observe"
)

type fakeSession struct {
	version atomic.Uint64
	pages   []schemas.PageInfo
}

func (f *fakeSession) ID() string               { return "sess-test" }
func (f *fakeSession) State() schemas.ConnState { return schemas.ConnAttached }
func (f *fakeSession) Ctx() context.Context     { return context.Background() }
func (f *fakeSession) DOMVersion() uint64       { return f.version.Load() }
func (f *fakeSession) BumpDOMVersion() uint64   { return f.version.Add(1) }
func (f *fakeSession) Pages(context.Context) ([]schemas.PageInfo, error) {
	return f.pages, nil
}
func (f *fakeSession) SelectPage(context.Context, string) error { return nil }

type fakeSessions struct {
	sess       *fakeSession
	acquireErr error
	releases   []bool
}

func (f *fakeSessions) Acquire(context.Context, schemas.ConnectMode) (schemas.BrowserSession, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return f.sess, nil
}

func (f *fakeSessions) Release(explicit bool) error {
	f.releases = append(f.releases, explicit)
	return nil
}

// fakeObserver returns a scripted sequence of results, repeating the last,
// and records the options of every call.
type fakeObserver struct {
	results []observeResult
	opts    []observe.Options
}

type observeResult struct {
	obs    schemas.PageObservation
	target *schemas.ElementTarget
	err    error
}

func (f *fakeObserver) Observe(_ context.Context, _ schemas.BrowserSession, _ schemas.Intent, opts observe.Options) (schemas.PageObservation, *schemas.ElementTarget, error) {
	i := len(f.opts)
	f.opts = append(f.opts, opts)
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	r := f.results[i]
	return r.obs, r.target, r.err
}

func (f *fakeObserver) Snapshot(context.Context, schemas.BrowserSession) (schemas.PageObservation, error) {
	if len(f.results) == 0 {
		return schemas.PageObservation{}, nil
	}
	return f.results[0].obs, nil
}

// fakePerformer pops one error per call; nil means success.
type fakePerformer struct {
	errs    []error
	intents []schemas.Intent
	targets []*schemas.ElementTarget
}

func (f *fakePerformer) Perform(_ context.Context, _ schemas.BrowserSession, intent schemas.Intent, target *schemas.ElementTarget) error {
	f.intents = append(f.intents, intent)
	f.targets = append(f.targets, target)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeCompleter struct {
	outcome schemas.Outcome
	err     error
	calls   int
	formID  string
	pageURL string
}

func (f *fakeCompleter) Complete(_ context.Context, _ schemas.BrowserSession, formID, pageURL string) (schemas.Outcome, error) {
	f.calls++
	f.formID = formID
	f.pageURL = pageURL
	return f.outcome, f.err
}

type fakeRecorder struct {
	steps []schemas.ProgressStep
	err   error
}

func (f *fakeRecorder) RecordStep(_ context.Context, step schemas.ProgressStep) error {
	f.steps = append(f.steps, step)
	return f.err
}
