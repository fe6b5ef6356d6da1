package browser

import (
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySequence(t *testing.T) {
	tests := map[string]string{
		"Enter":      kb.Enter,
		" enter ":    kb.Enter,
		"Arrow_Down": kb.ArrowDown,
		"ESC":        kb.Escape,
		"a":          "a",
		"ж":          "ж",
		"Space":      " ",
	}
	for in, want := range tests {
		got, err := keySequence(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := keySequence("Hyper")
	assert.ErrorContains(t, err, `unsupported key "Hyper"`)
}
