package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

const (
	defaultViewportWidth  = 1366
	defaultViewportHeight = 900
)

// allocatorFlags resolves the Chrome command line flags for cfg. Values are
// either bool switches or string settings.
func allocatorFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"no-sandbox":               true,
		"disable-dev-shm-usage":    true,
		"no-first-run":             true,
		"no-default-browser-check": true,
		"enable-automation":        true,
		"disable-popup-blocking":   true,
		"headless":                 cfg.Headless,
	}
	if cfg.Headless {
		flags["hide-scrollbars"] = true
		flags["mute-audio"] = true
	}
	if cfg.DisableGPU || cfg.Headless {
		flags["disable-gpu"] = true
	}

	// Extra args accept both "--flag" and "--flag=value".
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// viewport returns the configured window size, falling back to defaults for
// missing or non-positive dimensions.
func viewport(cfg config.BrowserConfig) (int, int) {
	w, h := cfg.Viewport["width"], cfg.Viewport["height"]
	if w <= 0 {
		w = defaultViewportWidth
	}
	if h <= 0 {
		h = defaultViewportHeight
	}
	return w, h
}

// AllocatorOptions builds the exec allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, 16)
	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	opts = append(opts, chromedp.WindowSize(viewport(cfg)))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}
