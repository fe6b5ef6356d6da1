package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chromedp/chromedp/kb"
)

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"home":       kb.Home,
	"end":        kb.End,
	"space":      " ",
}

// keySequence maps a key name such as "Enter" or "ArrowDown" to the runes
// chromedp sends. A single character is sent as is.
func keySequence(key string) (string, error) {
	if utf8.RuneCountInString(key) == 1 {
		return key, nil
	}
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", ""))
	if seq, ok := namedKeys[name]; ok {
		return seq, nil
	}
	return "", fmt.Errorf("unsupported key %q", key)
}
