// File: api/schemas/snapshot.go
package schemas

import "context"

// SnapshotNode is a compact structural view of one element. Nodes cut off by
// the depth limit carry Truncated and no Children.
type SnapshotNode struct {
	Tag               string            `json:"tag"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	Text              string            `json:"text,omitempty"`
	Visible           bool              `json:"visible"`
	Focused           bool              `json:"focused,omitempty"`
	ChildCount        int               `json:"child_count"`
	ElementChildCount int               `json:"element_child_count"`
	Children          []*SnapshotNode   `json:"children,omitempty"`
	Truncated         bool              `json:"truncated,omitempty"`
}

// SnapshotOptions bounds a structural snapshot.
type SnapshotOptions struct {
	MaxDepth     int      `json:"max_depth"`
	TextLimit    int      `json:"text_limit"`
	ExcludedTags []string `json:"excluded_tags"`
}

// Snapshotter produces the structural view of the element matched by a scope
// selector. An error means the scope could not be inspected.
type Snapshotter interface {
	Snapshot(ctx context.Context, scope string, opts SnapshotOptions) (*SnapshotNode, error)
}
