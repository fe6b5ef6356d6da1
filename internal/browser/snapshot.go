package browser

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

type snapshotResult struct {
	Found bool                  `json:"found"`
	Node  *schemas.SnapshotNode `json:"node"`
}

// snapshotJS walks the element matched by scope. The root is depth 1; nodes
// at maxDepth keep their counts but drop their children.
const snapshotJS = `(function(scope, maxDepth, textLimit, excluded) {
	const skip = new Set(excluded.map(t => t.toLowerCase()));
	const root = document.querySelector(scope);
	if (!root) {
		return {found: false};
	}
	const clip = s => {
		s = (s || '').replace(/\s+/g, ' ').trim();
		return textLimit > 0 && s.length > textLimit ? s.slice(0, textLimit) + '...' : s;
	};
	const isVisible = el => {
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';
	};
	const ownText = el => Array.from(el.childNodes)
		.filter(n => n.nodeType === Node.TEXT_NODE)
		.map(n => n.textContent)
		.join(' ');
	const walk = (el, depth) => {
		const kids = Array.from(el.children).filter(c => !skip.has(c.tagName.toLowerCase()));
		const node = {
			tag: el.tagName.toLowerCase(),
			attributes: {},
			text: clip(ownText(el)),
			visible: isVisible(el),
			focused: document.activeElement === el,
			child_count: el.childNodes.length,
			element_child_count: kids.length,
		};
		for (const a of el.attributes) {
			node.attributes[a.name] = clip(a.value);
		}
		if (depth >= maxDepth) {
			if (kids.length > 0) {
				node.truncated = true;
			}
			return node;
		}
		if (kids.length > 0) {
			node.children = kids.map(c => walk(c, depth + 1));
		}
		return node;
	};
	return {found: true, node: walk(root, 1)};
})`

// snapshotScript renders the snapshot call for scope.
func snapshotScript(scope string, opts schemas.SnapshotOptions) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", fmt.Errorf("%w: empty scope selector", ErrElementNotFound)
	}
	excluded := opts.ExcludedTags
	if excluded == nil {
		excluded = []string{}
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}
	args, err := json.Marshal([]any{scope, maxDepth, opts.TextLimit, excluded})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot arguments: %w", err)
	}
	// Spread the argument array into the call.
	inner := strings.TrimSuffix(strings.TrimPrefix(string(args), "["), "]")
	return snapshotJS + "(" + inner + ")", nil
}
