package resolver

import (
	"fmt"
	"strings"
)

const systemPrompt = `You locate one element on a web page for an automation agent.
You see the structure of the current scope as JSON. Each node has its tag, attributes,
trimmed visible text, visibility, focus and child counts. A node with "truncated": true
has descendants that were not expanded; nominate it to look inside.

Answer with exactly one line in one of these forms:
SELECTOR: <css selector> | THAT'S IS
SELECTOR: <css selector> | INTERESTING: <what you expect to find inside>
SELECTOR: <css selector or empty> | CAN'T FIND: <why this scope cannot contain the target>

Rules:
- Use THAT'S IS only when the selector uniquely identifies the target element.
- Use INTERESTING to descend into a promising child scope.
- Use CAN'T FIND when the current scope cannot contain the target. Optionally name another scope to try instead.
- Never nominate an excluded selector.
- Selectors must be valid CSS, absolute from the document (they are queried with document.querySelector).`

func buildPrompt(description, snapshot string, state *SearchState, problem string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TARGET ELEMENT: %s\n\n", description)
	fmt.Fprintf(&b, "CURRENT SCOPE: %s\n", state.Top())
	fmt.Fprintf(&b, "SCOPE STACK (root first): %s\n", strings.Join(state.Stack, " > "))
	if ex := state.ExcludedList(); len(ex) > 0 {
		fmt.Fprintf(&b, "EXCLUDED SELECTORS: %s\n", strings.Join(ex, ", "))
	} else {
		b.WriteString("EXCLUDED SELECTORS: (none)\n")
	}
	if problem != "" {
		fmt.Fprintf(&b, "PROBLEM WITH YOUR PREVIOUS ANSWER: %s\n", problem)
	}
	fmt.Fprintf(&b, "\nSCOPE STRUCTURE:\n%s\n", snapshot)
	return b.String()
}
