package resolver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/pilot-cli/internal/llmutil"
)

// ErrMalformedResponse is returned by ParseReply when the oracle strays from
// the SELECTOR grammar.
var ErrMalformedResponse = errors.New("malformed selector response")

// Verdict is the oracle's judgment about the nominated selector.
type Verdict int

const (
	// VerdictFound means the selector is the target.
	VerdictFound Verdict = iota + 1
	// VerdictDescend means the selector is a promising scope to look inside.
	VerdictDescend
	// VerdictBacktrack means the current scope cannot contain the target; the
	// selector, if any, is a fallback scope.
	VerdictBacktrack
)

func (v Verdict) String() string {
	switch v {
	case VerdictFound:
		return "THAT'S IS"
	case VerdictDescend:
		return "INTERESTING"
	case VerdictBacktrack:
		return "CAN'T FIND"
	}
	return "UNKNOWN"
}

// Reply is one parsed oracle turn.
type Reply struct {
	Selector string
	Verdict  Verdict
	// Note is the question after INTERESTING or the reason after CAN'T FIND.
	Note string
}

var replyRegex = regexp.MustCompile(`(?is)SELECTOR:\s*(.*?)\s*\|\s*(THAT['’]?S\s+IS|INTERESTING\s*:|CAN['’]?T\s+FIND\s*:)\s*(.*)$`)

// ParseReply parses `SELECTOR: <s> | THAT'S IS`, `SELECTOR: <s> | INTERESTING: <q>`
// or `SELECTOR: <s> | CAN'T FIND: <reason>`. Markers are case-insensitive and the
// selector may be quoted or wrapped in backticks.
func ParseReply(text string) (Reply, error) {
	m := replyRegex.FindStringSubmatch(llmutil.StripFences(text))
	if m == nil {
		return Reply{}, fmt.Errorf("%w: %q", ErrMalformedResponse, llmutil.Truncate(strings.TrimSpace(text), 200))
	}

	r := Reply{
		Selector: unquote(m[1]),
		Note:     strings.TrimSpace(m[3]),
	}
	marker := strings.ToUpper(m[2])
	switch {
	case strings.HasPrefix(marker, "THAT"):
		r.Verdict = VerdictFound
		r.Note = ""
	case strings.HasPrefix(marker, "INTERESTING"):
		r.Verdict = VerdictDescend
	default:
		r.Verdict = VerdictBacktrack
	}

	if r.Selector == "" && r.Verdict != VerdictBacktrack {
		return Reply{}, fmt.Errorf("%w: %s requires a selector", ErrMalformedResponse, r.Verdict)
	}
	return r, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{"`", "`"}, {`"`, `"`}, {"'", "'"}} {
		if len(s) >= 2 && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	switch strings.ToLower(s) {
	case "none", "null", "n/a", "-":
		return ""
	}
	return s
}
