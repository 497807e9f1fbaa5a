// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Manager owns the lifecycle of one browser connection. Acquire hands out
// the session; Release is a no-op unless close was explicitly requested.
// The engine never closes a session as a side effect of task completion:
// losing it mid-task forces the operator to redo authentication.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	mu      sync.Mutex
	session *Session
}

// NewManager creates a session manager. Connection is deferred to Acquire.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("session_manager"),
	}
}

// Acquire returns the live session, attaching or launching as needed.
// Policy: re-attachment to the configured remote endpoint is tried first
// (cheaper, preserves authentication and navigation state); on failure a
// controlled instance is launched.
func (m *Manager) Acquire(ctx context.Context, mode schemas.ConnectMode) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.State() != schemas.ConnClosed {
		m.logger.Debug("Reusing live session.", zap.String("session_id", m.session.ID()))
		return m.session, nil
	}

	switch mode {
	case schemas.ModeAttach:
		sess, err := m.attach(ctx)
		if err != nil {
			return nil, err
		}
		m.session = sess
	case schemas.ModeLaunch:
		sess, err := m.launch(ctx)
		if err != nil {
			return nil, err
		}
		m.session = sess
	case schemas.ModeAuto, "":
		sess, err := m.attach(ctx)
		if err != nil {
			m.logger.Info("Attach failed, launching a controlled instance.", zap.Error(err))
			sess, err = m.launch(ctx)
			if err != nil {
				return nil, err
			}
		}
		m.session = sess
	default:
		return nil, fmt.Errorf("unknown connect mode %q", mode)
	}

	m.logger.Info("Session acquired.",
		zap.String("session_id", m.session.ID()),
		zap.String("state", string(m.session.State())))
	return m.session, nil
}

// attach connects to an already-running browser over the DevTools endpoint.
func (m *Manager) attach(ctx context.Context) (*Session, error) {
	endpoint := m.cfg.Browser.RemoteURL
	if endpoint == "" {
		return nil, &schemas.ConnectionError{Endpoint: endpoint, Err: fmt.Errorf("no remote endpoint configured")}
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), endpoint)

	sess, err := newSession(allocCtx, allocCancel, schemas.ConnAttached, m.logger)
	if err != nil {
		allocCancel()
		return nil, &schemas.ConnectionError{Endpoint: endpoint, Err: err}
	}

	// Probe the connection: the first Run establishes the websocket and
	// fails fast if nothing is listening.
	probeCtx, probeCancel := context.WithTimeout(ctx, m.cfg.Browser.AttachProbeTimeout)
	defer probeCancel()
	if err := sess.probe(probeCtx); err != nil {
		sess.teardown()
		return nil, &schemas.ConnectionError{Endpoint: endpoint, Err: err}
	}

	return sess, nil
}

// launch starts a new controlled browser instance.
func (m *Manager) launch(ctx context.Context) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", m.cfg.Browser.Headless))
	if m.cfg.Browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.Browser.ExecPath))
	}
	for _, arg := range m.cfg.Browser.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	sess, err := newSession(allocCtx, allocCancel, schemas.ConnLaunched, m.logger)
	if err != nil {
		allocCancel()
		return nil, &schemas.ConnectionError{Endpoint: "exec", Err: err}
	}

	if err := sess.probe(ctx); err != nil {
		sess.teardown()
		return nil, &schemas.ConnectionError{Endpoint: "exec", Err: err}
	}

	return sess, nil
}

// Release closes the session only when explicitly requested. A Release with
// explicit=false preserves the session for the next turn.
func (m *Manager) Release(explicit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	if !explicit {
		m.logger.Debug("Release without explicit close; session kept alive.",
			zap.String("session_id", m.session.ID()))
		return nil
	}

	m.logger.Info("Closing session on explicit instruction.", zap.String("session_id", m.session.ID()))
	err := m.session.Close()
	m.session = nil
	return err
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
