package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	Thought string `json:"thought"`
	Count   int    `json:"count"`
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "  TASK | buy milk \n", "TASK | buy milk"},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\ntrue\n```", "true"},
		{"inner backticks kept", "use `x`", "use `x`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"object", `{"a":1}`, `{"a":1}`},
		{"array in prose", `Here is the plan: ["open", "click"] done.`, `["open", "click"]`},
		{"object in prose", `Sure! {"thought":"x","list":[1]} hope it helps`, `{"thought":"x","list":[1]}`},
		{"fenced array", "```json\n[\"a\"]\n```", `["a"]`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	got, err := ParseJSONResponse[step]("```json\n{\"thought\":\"go\",\"count\":2,\"extra\":true}\n```")
	require.NoError(t, err)
	assert.Equal(t, step{Thought: "go", Count: 2}, *got)

	_, err = ParseJSONResponse[step]("not json at all")
	assert.ErrorContains(t, err, "failed to unmarshal LLM JSON response")
}

func TestParseStrictJSONResponse(t *testing.T) {
	_, err := ParseStrictJSONResponse[step](`{"thought":"go","extra":true}`)
	assert.Error(t, err, "unknown fields must be rejected")

	got, err := ParseStrictJSONResponse[[]string](`["a","b"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, *got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "пр...", Truncate("привет", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
