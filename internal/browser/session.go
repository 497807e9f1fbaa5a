// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Session is one live browser connection. It owns the DOM version counter:
// a monotonic token initialized at attach/launch and advanced only by the
// action executor when a mutating action lands. Observations and resolved
// targets carry the version they were taken at and die when it moves.
type Session struct {
	id     string
	state  schemas.ConnState
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu sync.Mutex
	// pages maps target IDs to their chromedp contexts. Contexts stay alive
	// until explicit close so re-selecting a page never re-attaches.
	pages    map[string]pageHandle
	selected string

	domVersion atomic.Uint64
	closeOnce  sync.Once
	onClose    func()
}

type pageHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ schemas.BrowserSession = (*Session)(nil)

func newSession(allocCtx context.Context, allocCancel context.CancelFunc, state schemas.ConnState, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	s := &Session{
		id:          id,
		state:       state,
		logger:      logger.Named("session").With(zap.String("session_id", id)),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		pages:       make(map[string]pageHandle),
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	s.pages[""] = pageHandle{ctx: ctx, cancel: cancel}
	s.selected = ""
	return s, nil
}

// probe establishes the connection by running an empty task and records the
// resulting target under its real ID.
func (s *Session) probe(ctx context.Context) error {
	s.mu.Lock()
	h := s.pages[s.selected]
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(h.ctx) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("connection probe failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("connection probe timed out: %w", ctx.Err())
	}

	if tgt := chromedp.FromContext(h.ctx).Target; tgt != nil {
		s.mu.Lock()
		id := string(tgt.TargetID)
		s.pages[id] = h
		delete(s.pages, "")
		s.selected = id
		s.mu.Unlock()
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the connection state.
func (s *Session) State() schemas.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ctx returns the chromedp context of the currently selected page.
func (s *Session) Ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[s.selected].ctx
}

// DOMVersion returns the current structural-state token.
func (s *Session) DOMVersion() uint64 { return s.domVersion.Load() }

// BumpDOMVersion advances the token. Every call strictly increments it, so
// anything resolved before the bump is detectably stale afterwards.
func (s *Session) BumpDOMVersion() uint64 { return s.domVersion.Add(1) }

// Pages enumerates the open pages. A popup opened by a click shows up here
// but is never auto-focused; the caller selects it explicitly.
func (s *Session) Pages(ctx context.Context) ([]schemas.PageInfo, error) {
	if s.State() == schemas.ConnClosed {
		return nil, schemas.ErrSessionClosed
	}

	infos, err := chromedp.Targets(s.Ctx())
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}

	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()

	var pages []schemas.PageInfo
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		pages = append(pages, schemas.PageInfo{
			TargetID: string(info.TargetID),
			URL:      info.URL,
			Title:    info.Title,
			Focused:  string(info.TargetID) == selected,
		})
	}
	return pages, nil
}

// SelectPage refocuses the session on the given target. Subsequent actions
// and observations run against it. Selecting a page does not invalidate
// other pages' contexts; they stay attached for later re-selection.
func (s *Session) SelectPage(ctx context.Context, targetID string) error {
	if s.State() == schemas.ConnClosed {
		return schemas.ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == targetID {
		return nil
	}
	if _, ok := s.pages[targetID]; ok {
		s.selected = targetID
		s.logger.Debug("Re-selected known page.", zap.String("target_id", targetID))
	} else {
		pageCtx, cancel := chromedp.NewContext(s.allocCtx, chromedp.WithTargetID(target.ID(targetID)))
		s.pages[targetID] = pageHandle{ctx: pageCtx, cancel: cancel}
		s.selected = targetID
		s.logger.Debug("Attached to page.", zap.String("target_id", targetID))
	}

	// A different page is a different DOM; everything observed so far is
	// stale for the new focus.
	s.domVersion.Add(1)
	return nil
}

// SetOnClose registers a callback fired once on close.
func (s *Session) SetOnClose(fn func()) { s.onClose = fn }

// Close tears the connection down. Only the manager calls this, and only on
// explicit instruction.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		s.mu.Lock()
		s.state = schemas.ConnClosed
		for _, h := range s.pages {
			h.cancel()
		}
		s.mu.Unlock()
		s.allocCancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// teardown releases a half-constructed session during failed acquisition.
func (s *Session) teardown() {
	s.mu.Lock()
	s.state = schemas.ConnClosed
	for _, h := range s.pages {
		h.cancel()
	}
	s.mu.Unlock()
	s.allocCancel()
}
