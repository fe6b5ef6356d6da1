package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Reply
	}{
		{"found", "SELECTOR: .search-btn | THAT'S IS", Reply{Selector: ".search-btn", Verdict: VerdictFound}},
		{"found lowercase curly", "selector: #q | that’s is", Reply{Selector: "#q", Verdict: VerdictFound}},
		{"descend", "SELECTOR: main > form | INTERESTING: login fields", Reply{Selector: "main > form", Verdict: VerdictDescend, Note: "login fields"}},
		{"backtrack with fallback", "SELECTOR: footer | CAN'T FIND: only ads here", Reply{Selector: "footer", Verdict: VerdictBacktrack, Note: "only ads here"}},
		{"backtrack empty", "SELECTOR: | CAN'T FIND: no children", Reply{Verdict: VerdictBacktrack, Note: "no children"}},
		{"backtrack none", "SELECTOR: none | CANT FIND: empty", Reply{Verdict: VerdictBacktrack, Note: "empty"}},
		{"quoted", `SELECTOR: "input[name='q']" | THAT'S IS`, Reply{Selector: "input[name='q']", Verdict: VerdictFound}},
		{"fenced with preamble", "```\nSure.\nSELECTOR: `#go` | THAT'S IS\n```", Reply{Selector: "#go", Verdict: VerdictFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"The button is .search-btn",
		"SELECTOR: .a",
		"SELECTOR: .a | MAYBE",
		"SELECTOR: | THAT'S IS",
		"SELECTOR:  | INTERESTING: what",
	} {
		_, err := ParseReply(in)
		assert.ErrorIs(t, err, ErrMalformedResponse, "input %q", in)
	}
}

func FuzzParseReply(f *testing.F) {
	f.Add("SELECTOR: .search-btn | THAT'S IS")
	f.Add("SELECTOR: main | INTERESTING: q")
	f.Add("SELECTOR: | CAN'T FIND: r")
	f.Add("garbage")
	f.Fuzz(func(t *testing.T, in string) {
		r, err := ParseReply(in)
		if err != nil {
			return
		}
		if r.Verdict < VerdictFound || r.Verdict > VerdictBacktrack {
			t.Fatalf("invalid verdict %d for %q", r.Verdict, in)
		}
		if r.Selector == "" && r.Verdict != VerdictBacktrack {
			t.Fatalf("empty selector accepted for %s: %q", r.Verdict, in)
		}
	})
}
