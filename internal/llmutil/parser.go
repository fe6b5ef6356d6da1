// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	// Backticks are written as \x60 because raw strings cannot contain them.
	fenceRegex = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60$")

	// strict rejects unknown object keys so that oracle replies cannot smuggle
	// fields past the decoder.
	strict = jsoniter.Config{
		EscapeHTML:             false,
		DisallowUnknownFields:  true,
		ValidateJsonRawMessage: true,
	}.Froze()

	lenient = jsoniter.ConfigCompatibleWithStandardLibrary
)

// StripFences removes a surrounding markdown code fence, with or without a
// language tag. Text without a fence is returned trimmed.
func StripFences(response string) string {
	response = strings.TrimSpace(response)
	if m := fenceRegex.FindStringSubmatch(response); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return response
}

// ExtractJSON returns the JSON document embedded in an oracle reply. It
// tolerates markdown fences and conversational text around a single object or
// array, preferring whichever bracket appears first.
func ExtractJSON(response string) string {
	s := StripFences(response)
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	obj := strings.Index(s, "{")
	arr := strings.Index(s, "[")
	open, closer := "{", "}"
	if obj == -1 || (arr != -1 && arr < obj) {
		open, closer = "[", "]"
	}
	first := strings.Index(s, open)
	last := strings.LastIndex(s, closer)
	if first == -1 || last <= first {
		return s
	}
	return s[first : last+1]
}

// ParseJSONResponse decodes an oracle reply into T, tolerating fences and
// surrounding prose. Unknown fields are ignored.
func ParseJSONResponse[T any](response string) (*T, error) {
	return decode[T](lenient, response)
}

// ParseStrictJSONResponse is ParseJSONResponse with unknown fields rejected.
func ParseStrictJSONResponse[T any](response string) (*T, error) {
	return decode[T](strict, response)
}

func decode[T any](api jsoniter.API, response string) (*T, error) {
	doc := ExtractJSON(response)
	var result T
	if err := api.UnmarshalFromString(doc, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(doc, 500))
	}
	return &result, nil
}

// Truncate shortens s to at most maxRunes runes, appending "..." when cut.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
