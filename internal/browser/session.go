package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/llmutil"
)

// pageTextLimit caps get_page_text output in runes.
const pageTextLimit = 20000

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is one browser tab. Every operation runs under both the tab's
// lifetime and the caller's context.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.NetworkConfig
	logger *zap.Logger

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.Snapshotter = (*Session)(nil)

// NewSession wraps a chromedp tab context. cancel releases the tab.
func NewSession(ctx context.Context, cancel context.CancelFunc, id string, cfg config.NetworkConfig, logger *zap.Logger, onClose func()) *Session {
	return &Session{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger.With(zap.String("session_id", id)),
		onClose: onClose,
	}
}

// Initialize attaches to the target and applies the session-wide network
// settings.
func (s *Session) Initialize(ctx context.Context) error {
	var tasks chromedp.Tasks
	tasks = append(tasks, network.Enable())
	if len(s.cfg.Headers) > 0 {
		headers := make(network.Headers, len(s.cfg.Headers))
		for k, v := range s.cfg.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	if err := s.runActions(ctx, tasks); err != nil {
		return fmt.Errorf("failed to initialize browser session: %w", err)
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Navigate loads url, then waits for the document to be ready and for the
// configured post-load settle time.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating session.", zap.String("url", url))

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	defer navCancel()

	err := s.runActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if cerr := s.contextErr(ctx); cerr != nil {
			return fmt.Errorf("navigation canceled: %w", cerr)
		}
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, navTimeout, navCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	if err := s.Wait(ctx, s.cfg.PostLoadWait); err != nil {
		return err
	}
	s.logger.Debug("Navigation complete.", zap.String("url", url))
	return nil
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Attempting to click element", zap.String("selector", selector))
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	if err := s.ensureElement(opCtx, selector); err != nil {
		return err
	}
	err := s.runActions(opCtx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	return s.actionErr(ctx, opCtx, "click", selector, err)
}

// Type clears the input matched by selector and types text into it.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.logger.Debug("Attempting to type into element", zap.String("selector", selector), zap.Int("text_length", len(text)))
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	if err := s.ensureElement(opCtx, selector); err != nil {
		return err
	}

	var cleared bool
	err := s.runActions(opCtx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(clearScript(selector), &cleared, returnByValue),
	)
	if err != nil {
		return s.actionErr(ctx, opCtx, "type", selector, err)
	}
	if !cleared {
		return fmt.Errorf("type action failed for selector '%s': element is disabled or read-only", selector)
	}

	err = s.runActions(opCtx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	return s.actionErr(ctx, opCtx, "type", selector, err)
}

// Press sends key to the element matched by selector, or to the focused
// element when selector is empty.
func (s *Session) Press(ctx context.Context, selector, key string) error {
	keys, err := keySequence(key)
	if err != nil {
		return err
	}
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	if selector == "" {
		err = s.runActions(opCtx, chromedp.KeyEvent(keys))
		return s.actionErr(ctx, opCtx, "press", "(focused)", err)
	}
	if err := s.ensureElement(opCtx, selector); err != nil {
		return err
	}
	err = s.runActions(opCtx, chromedp.SendKeys(selector, keys, chromedp.ByQuery))
	return s.actionErr(ctx, opCtx, "press", selector, err)
}

// WaitForElement blocks until selector is visible or timeout elapses. A
// non-positive timeout uses the action timeout.
func (s *Session) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.actionTimeout()
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.runActions(opCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil && s.contextErr(ctx) == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q did not appear within %v", ErrElementNotFound, selector, timeout)
	}
	return s.actionErr(ctx, opCtx, "wait_for_element", selector, err)
}

// Wait pauses for d, honoring both contexts.
func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	waitCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-waitCtx.Done():
		return s.contextErr(ctx)
	}
}

// Scroll moves the viewport up, down, to the top or to the bottom.
func (s *Session) Scroll(ctx context.Context, direction string) error {
	var script string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down":
		script = `window.scrollBy({top: window.innerHeight * 0.8, behavior: 'auto'}); true`
	case "up":
		script = `window.scrollBy({top: -window.innerHeight * 0.8, behavior: 'auto'}); true`
	case "bottom":
		script = `window.scrollTo({top: document.body.scrollHeight, behavior: 'auto'}); true`
	case "top":
		script = `window.scrollTo({top: 0, behavior: 'auto'}); true`
	default:
		return fmt.Errorf("invalid scroll direction: %s (supported: up, down, top, bottom)", direction)
	}
	s.logger.Debug("Scrolling page", zap.String("direction", direction))

	opCtx, cancel := s.actionContext(ctx)
	defer cancel()
	var ok bool
	if err := s.runActions(opCtx, chromedp.Evaluate(script, &ok)); err != nil {
		return s.actionErr(ctx, opCtx, "scroll", direction, err)
	}
	return s.Wait(ctx, 300*time.Millisecond)
}

// ElementText returns the visible text of the element matched by selector.
func (s *Session) ElementText(ctx context.Context, selector string) (string, error) {
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	if err := s.ensureElement(opCtx, selector); err != nil {
		return "", err
	}
	var text string
	err := s.runActions(opCtx, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeReady))
	if err := s.actionErr(ctx, opCtx, "get_element_text", selector, err); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// CurrentURL returns the URL of the loaded document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	var url string
	if err := s.runActions(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return url, nil
}

// PageText returns the readable text of the page.
func (s *Session) PageText(ctx context.Context) (string, error) {
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	var doc string
	if err := s.runActions(opCtx, chromedp.OuterHTML("html", &doc, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	text, err := ExtractText(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	return llmutil.Truncate(text, pageTextLimit), nil
}

// AccessibilityTree renders the page's full accessibility tree, one node
// per line, indented by depth.
func (s *Session) AccessibilityTree(ctx context.Context) (string, error) {
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	var nodes []*accessibility.Node
	err := s.runActions(opCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		nodes, err = accessibility.GetFullAXTree().Do(c)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("failed to read accessibility tree: %w", err)
	}
	return llmutil.Truncate(renderAXTree(nodes), pageTextLimit), nil
}

// Snapshot implements schemas.Snapshotter.
func (s *Session) Snapshot(ctx context.Context, scope string, opts schemas.SnapshotOptions) (*schemas.SnapshotNode, error) {
	script, err := snapshotScript(scope, opts)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()

	var res snapshotResult
	if err := s.runActions(opCtx, chromedp.Evaluate(script, &res, returnByValue)); err != nil {
		if cerr := s.contextErr(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("snapshot of %q failed: %w", scope, err)
	}
	if !res.Found || res.Node == nil {
		return nil, fmt.Errorf("%w: no element matches selector %q", ErrElementNotFound, scope)
	}
	return res.Node, nil
}

// ExecuteScript evaluates a JavaScript expression and decodes its result
// into res, which may be nil.
func (s *Session) ExecuteScript(ctx context.Context, script string, res any) error {
	opCtx, cancel := s.actionContext(ctx)
	defer cancel()
	return s.runActions(opCtx, chromedp.Evaluate(script, res, returnByValue))
}

// Close releases the tab. Calling it more than once is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// ensureElement fails fast with ErrElementNotFound instead of letting a
// query action poll until the deadline.
func (s *Session) ensureElement(ctx context.Context, selector string) error {
	var exists bool
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
	if err := s.runActions(ctx, chromedp.Evaluate(expr, &exists)); err != nil {
		if cerr := s.contextErr(ctx); cerr != nil {
			return cerr
		}
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrElementNotFound, selector)
	}
	return nil
}

func (s *Session) actionTimeout() time.Duration {
	if s.cfg.ActionTimeout > 0 {
		return s.cfg.ActionTimeout
	}
	return 30 * time.Second
}

func (s *Session) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.actionTimeout())
}

// contextErr prefers the caller's cancellation over the session's.
func (s *Session) contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ctx.Err(); err != nil {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) actionErr(ctx, opCtx context.Context, action, target string, err error) error {
	if err == nil {
		s.logger.Debug("Browser action succeeded.", zap.String("action", action), zap.String("target", target))
		return nil
	}
	if cerr := s.contextErr(ctx); cerr != nil {
		return cerr
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s action timed out for '%s': %w", action, target, opCtx.Err())
	}
	return fmt.Errorf("%s action failed for '%s': %w", action, target, err)
}

// runActions runs actions under both the session lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.isClosed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func returnByValue(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithAwaitPromise(true)
}

// jsString encodes v as a JavaScript string literal.
func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func clearScript(selector string) string {
	return fmt.Sprintf(`(function(selector) {
	const el = document.querySelector(selector);
	if (!el || el.disabled || el.readOnly) {
		return false;
	}
	if ('value' in el) {
		el.value = "";
	} else if (el.isContentEditable) {
		el.textContent = "";
	}
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.focus();
	return true;
})(%s)`, jsString(selector))
}
