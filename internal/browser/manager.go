package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Manager owns the Chrome process and hands out tab sessions. The browser
// is launched lazily by the first NewSession call.
type Manager struct {
	logger *zap.Logger
	cfg    config.Config

	allocCtx     context.Context
	allocCancel  context.CancelFunc
	browserCtx   context.Context
	browserClose context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex

	initOnce sync.Once
	initErr  error
}

// NewManager creates a manager. No browser is started yet.
func NewManager(cfg config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created (initialization deferred).")
	return m
}

// initialize launches Chrome. The first Run on a context allocates the
// browser and ties it to that context, so it runs on browserCtx itself and
// only Shutdown stops it.
func (m *Manager) initialize() error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Browser.Headless))

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), AllocatorOptions(m.cfg.Browser)...)

		ctxOpts := []chromedp.ContextOption{
			chromedp.WithLogf(m.logger.Sugar().Infof),
			chromedp.WithErrorf(m.logger.Sugar().Debugf),
		}
		if m.cfg.Browser.Debug {
			ctxOpts = append(ctxOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
		}
		m.browserCtx, m.browserClose = chromedp.NewContext(m.allocCtx, ctxOpts...)

		if err := chromedp.Run(m.browserCtx); err != nil {
			m.browserClose()
			m.allocCancel()
			m.initErr = fmt.Errorf("failed to launch browser instance: %w", err)
			return
		}
		m.logger.Info("Browser manager initialized successfully.")
	})
	return m.initErr
}

// NewSession opens a new tab.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.initialize(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}
	id := uuid.NewString()
	s := NewSession(tabCtx, tabCancel, id, m.cfg.Network, m.logger, func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	})

	if err := s.Initialize(ctx); err != nil {
		_ = s.Close(context.Background())
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	s.logger.Info("Browser session created.")
	return s, nil
}

// Shutdown closes every open session concurrently, then the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range open {
		g.Go(func() error {
			if err := s.Close(gctx); err != nil {
				return fmt.Errorf("failed to close session %s: %w", s.ID(), err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		m.logger.Warn("Error during session close in shutdown.", zap.Error(err))
	}

	if m.browserClose != nil {
		// Closing the browser context asks Chrome to exit gracefully.
		m.browserClose()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shutdown complete.")
	return err
}
