package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/pilot-cli/internal/capability"
)

// Page is the subset of Session the capability handlers drive.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Press(ctx context.Context, selector, key string) error
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
	Wait(ctx context.Context, d time.Duration) error
	Scroll(ctx context.Context, direction string) error
	ElementText(ctx context.Context, selector string) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	AccessibilityTree(ctx context.Context) (string, error)
}

var _ Page = (*Session)(nil)

// maxWait bounds the wait capability.
const maxWait = 60 * time.Second

// Capabilities returns the browser capability table bound to p.
func Capabilities(p Page) []capability.Spec {
	return []capability.Spec{
		{
			Name:        "open_url",
			Description: "Opens the given URL in the current tab and waits for the page to load.",
			Params: []capability.Param{
				{Name: "url", Type: capability.TypeString, Required: true, Description: "Absolute URL, e.g. https://example.com."},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				url := normalizeURL(args.String("url"))
				if err := p.Navigate(ctx, url); err != nil {
					return "", err
				}
				return "", nil
			},
		},
		{
			Name:        "click",
			Description: "Clicks the element matched by a CSS selector.",
			Params: []capability.Param{
				{Name: "selector", Type: capability.TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				return "", p.Click(ctx, args.String("selector"))
			},
		},
		{
			Name:        "type",
			Description: "Replaces the content of the input matched by a CSS selector with the given text.",
			Params: []capability.Param{
				{Name: "selector", Type: capability.TypeString, Required: true},
				{Name: "text", Type: capability.TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				return "", p.Type(ctx, args.String("selector"), args.String("text"))
			},
		},
		{
			Name:        "press",
			Description: "Presses a key (Enter, Tab, Escape, ArrowDown, ... or a single character) on the element matched by selector, or on the focused element when selector is omitted.",
			Params: []capability.Param{
				{Name: "selector", Type: capability.TypeString},
				{Name: "key", Type: capability.TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				return "", p.Press(ctx, args.String("selector"), args.String("key"))
			},
		},
		{
			Name:        "wait_for_element",
			Description: "Waits until the element matched by a CSS selector is visible.",
			Params: []capability.Param{
				{Name: "selector", Type: capability.TypeString, Required: true},
				{Name: "timeout_ms", Type: capability.TypeInteger, Default: 10000, Description: "Maximum wait in milliseconds."},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				timeout := time.Duration(args.Int("timeout_ms")) * time.Millisecond
				return "", p.WaitForElement(ctx, args.String("selector"), timeout)
			},
		},
		{
			Name:        "wait",
			Description: "Pauses for the given number of milliseconds (at most 60000).",
			Params: []capability.Param{
				{Name: "ms", Type: capability.TypeInteger, Required: true},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				d := time.Duration(args.Int("ms")) * time.Millisecond
				if d < 0 {
					return "", fmt.Errorf("ms must not be negative, got %d", args.Int("ms"))
				}
				return "", p.Wait(ctx, min(d, maxWait))
			},
		},
		{
			Name:        "scroll",
			Description: "Scrolls the page: up, down, top or bottom.",
			Params: []capability.Param{
				{Name: "direction", Type: capability.TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				return "", p.Scroll(ctx, args.String("direction"))
			},
		},
		{
			Name:        "get_element_text",
			Description: "Returns the visible text of the element matched by a CSS selector.",
			Params: []capability.Param{
				{Name: "selector", Type: capability.TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args capability.Args) (string, error) {
				text, err := p.ElementText(ctx, args.String("selector"))
				if err != nil {
					return "", err
				}
				if text == "" {
					return "(element has no text)", nil
				}
				return text, nil
			},
		},
		{
			Name:        "get_page_url",
			Description: "Returns the URL of the current page.",
			Handler: func(ctx context.Context, _ capability.Args) (string, error) {
				return p.CurrentURL(ctx)
			},
		},
		{
			Name:        "get_page_text",
			Description: "Returns the readable text of the current page.",
			Handler: func(ctx context.Context, _ capability.Args) (string, error) {
				return p.PageText(ctx)
			},
		},
		{
			Name:        "get_accessibility_tree",
			Description: "Returns the accessibility tree of the current page (roles and names).",
			Handler: func(ctx context.Context, _ capability.Args) (string, error) {
				return p.AccessibilityTree(ctx)
			},
		},
		{
			Name:     "current_url",
			Internal: true,
			Handler: func(ctx context.Context, _ capability.Args) (string, error) {
				return p.CurrentURL(ctx)
			},
		},
	}
}

// normalizeURL adds a scheme to bare hosts such as "example.com".
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") || strings.HasPrefix(raw, "about:") || strings.HasPrefix(raw, "data:") {
		return raw
	}
	return "https://" + raw
}
