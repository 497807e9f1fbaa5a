// api/schemas/session.go
package schemas

import "context"

// ConnState describes the lifecycle state of a browser connection.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnAttached     ConnState = "attached"
	ConnLaunched     ConnState = "launched"
	ConnClosed       ConnState = "closed"
)

// ConnectMode selects how a session should be acquired.
type ConnectMode string

const (
	// ModeAuto tries re-attachment to an existing remote endpoint first and
	// falls back to launching a controlled instance. This is the default:
	// re-attachment is cheaper and preserves page state such as authentication.
	ModeAuto   ConnectMode = "auto"
	ModeAttach ConnectMode = "attach"
	ModeLaunch ConnectMode = "launch"
)

// PageInfo describes one open page (target) in the browser.
// Popups do not auto-focus; the executor enumerates these and the engine
// selects the intended one explicitly before continuing an action sequence.
type PageInfo struct {
	TargetID string `json:"target_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Focused  bool   `json:"focused"`
}

// BrowserSession is the surface of a live session consumed by the
// observation and action layers. The concrete implementation lives in
// internal/browser; this interface keeps those layers mockable.
type BrowserSession interface {
	ID() string
	State() ConnState
	// Ctx returns the chromedp context actions must run against. It changes
	// when a different page is selected.
	Ctx() context.Context
	// DOMVersion is the monotonic token for the current structural state of
	// the selected page. Owned by the session, initialized at attach/launch.
	DOMVersion() uint64
	// BumpDOMVersion invalidates all outstanding observations and targets by
	// advancing the version. Called by the action executor on every mutation.
	BumpDOMVersion() uint64
	// Pages enumerates open pages; SelectPage refocuses the session on one.
	Pages(ctx context.Context) ([]PageInfo, error)
	SelectPage(ctx context.Context, targetID string) error
}
