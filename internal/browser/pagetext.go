package browser

import (
	"fmt"
	"io"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skippedTextElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Iframe:   true,
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
	atom.Button: true, atom.Option: true,
}

// ExtractText returns the human-readable text of an HTML document: one line
// per block element, whitespace collapsed, script-like content dropped.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse page HTML: %w", err)
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		line := strings.Join(strings.Fields(cur.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
			return
		case html.ElementNode:
			if skippedTextElements[n.DataAtom] || hidden(n) {
				return
			}
			if n.DataAtom == atom.Input {
				if v := inputText(n); v != "" {
					cur.WriteString(v)
					cur.WriteByte(' ')
				}
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(doc)
	flush()
	return strings.Join(lines, "\n"), nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hidden(n *html.Node) bool {
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if v, _ := attr(n, "aria-hidden"); v == "true" {
		return true
	}
	style, _ := attr(n, "style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// inputText surfaces the value or placeholder of visible text inputs.
func inputText(n *html.Node) string {
	typ, _ := attr(n, "type")
	switch strings.ToLower(typ) {
	case "hidden", "password":
		return ""
	}
	if v, _ := attr(n, "value"); v != "" {
		return "[" + v + "]"
	}
	if p, _ := attr(n, "placeholder"); p != "" {
		return "[" + p + "]"
	}
	return ""
}

// renderAXTree prints non-ignored nodes as "role: name", indented by their
// depth among non-ignored ancestors.
func renderAXTree(nodes []*accessibility.Node) string {
	byID := make(map[accessibility.NodeID]*accessibility.Node, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}

	var b strings.Builder
	visited := make(map[accessibility.NodeID]bool, len(nodes))
	var walk func(n *accessibility.Node, depth int)
	walk = func(n *accessibility.Node, depth int) {
		if visited[n.NodeID] {
			return
		}
		visited[n.NodeID] = true

		next := depth
		if !n.Ignored {
			role, name := axValue(n.Role), axValue(n.Name)
			if name != "" || (role != "" && role != "none" && role != "generic") {
				b.WriteString(strings.Repeat("  ", depth))
				b.WriteString(role)
				if name != "" {
					fmt.Fprintf(&b, ": %q", name)
				}
				b.WriteByte('\n')
				next = depth + 1
			}
		}
		for _, id := range n.ChildIDs {
			if child, ok := byID[id]; ok {
				walk(child, next)
			}
		}
	}
	for _, n := range nodes {
		if _, hasParent := byID[n.ParentID]; n.ParentID == "" || !hasParent {
			walk(n, 0)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func axValue(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(v.Value), &s); err != nil {
		return strings.Trim(string(v.Value), `"`)
	}
	return strings.TrimSpace(s)
}
