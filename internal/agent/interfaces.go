// internal/agent/interfaces.go
package agent

import "context"

// Operator is the human at the console.
type Operator interface {
	// Prompt prints label and returns the next input line. It returns
	// io.EOF when input ends.
	Prompt(ctx context.Context, label string) (string, error)
	Say(format string, args ...any)
	// Thinking is shown before every oracle call.
	Thinking()
	Thought(text string)
	Warn(format string, args ...any)
	Fail(format string, args ...any)
}
