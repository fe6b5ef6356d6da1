package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

func TestSearchState_Backtrack(t *testing.T) {
	s := NewSearchState("html")
	require.NoError(t, s.Descend("main"))
	require.NoError(t, s.Descend("main form"))

	assert.True(t, s.Backtrack("aside"))
	assert.Equal(t, []string{"html", "main", "aside"}, s.Stack)
	assert.Equal(t, []string{"main form"}, s.ExcludedList())

	assert.ErrorContains(t, s.Descend("main form"), "already excluded")
	assert.ErrorContains(t, s.Descend("aside"), "already the current scope")

	// Fallback that is already excluded is ignored.
	assert.True(t, s.Backtrack("main form"))
	assert.Equal(t, []string{"html", "main"}, s.Stack)
}

func TestSearchState_RootReentry(t *testing.T) {
	s := NewSearchState("html")
	require.NoError(t, s.Descend("body"))

	assert.True(t, s.Backtrack(""))
	assert.Equal(t, []string{"html"}, s.Stack)

	// Excluding the root with a fallback keeps the search alive in the fallback.
	assert.True(t, s.Backtrack("nav"))
	assert.Equal(t, []string{"nav"}, s.Stack)

	assert.False(t, s.Backtrack(""), "stack empty and root excluded")
	assert.Empty(t, s.Stack)
}

func TestSearchState_PathNeverRepeats(t *testing.T) {
	s := NewSearchState("html")
	require.NoError(t, s.Descend("body"))

	assert.ErrorContains(t, s.Descend("html"), "already on the current path")
	assert.Equal(t, []string{"html", "body"}, s.Stack)

	// Naming the root as the fallback returns to it instead of pushing a copy.
	assert.True(t, s.Backtrack("html"))
	assert.Equal(t, []string{"html"}, s.Stack)
	assert.Equal(t, []string{"body"}, s.ExcludedList())
	assert.False(t, s.IsExcluded("html"), "the root is still a live scope")
}

func TestSearchState_AncestorFallback(t *testing.T) {
	s := NewSearchState("html")
	require.NoError(t, s.Descend("body"))
	require.NoError(t, s.Descend("main"))
	require.NoError(t, s.Descend("main form"))

	assert.True(t, s.Backtrack("body"))
	assert.Equal(t, []string{"html", "body"}, s.Stack)
	assert.Equal(t, []string{"main form"}, s.ExcludedList())
}

var selectors = []string{"html", "body", "main", "form", "nav", "#q", ".btn", ""}

// The exclusion set only grows, and the stack holds no excluded or repeated
// scope.
func TestSearchState_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewSearchState("html")
		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := s.ExcludedList()
			sel := rapid.SampledFrom(selectors).Draw(t, "selector")

			live := true
			if rapid.Bool().Draw(t, "descend") {
				_ = s.Descend(sel)
			} else {
				live = s.Backtrack(sel)
			}

			after := s.ExcludedList()
			if len(after) < len(before) {
				t.Fatalf("exclusion set shrank: %v -> %v", before, after)
			}
			for j := range before {
				if before[j] != after[j] {
					t.Fatalf("exclusion order rewritten: %v -> %v", before, after)
				}
			}
			if !live {
				if !s.IsExcluded("html") {
					t.Fatalf("search ended while root is still available")
				}
				return
			}
			seen := make(map[string]bool, len(s.Stack))
			for _, scope := range s.Stack {
				if s.IsExcluded(scope) {
					t.Fatalf("excluded scope %q on the stack %v", scope, s.Stack)
				}
				if seen[scope] {
					t.Fatalf("scope %q repeated on the stack %v", scope, s.Stack)
				}
				seen[scope] = true
			}
		}
	})
}

// Whatever the oracle says, a search ends within the iteration budget and
// never inspects a scope after excluding it.
func TestResolve_TerminatesWithinBudget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		verdicts := []string{"THAT'S IS", "INTERESTING: q", "CAN'T FIND: r", "?"}
		budget := rapid.IntRange(1, 60).Draw(t, "budget")

		oracle := oracleFunc(func(ctx context.Context, req schemas.GenerationRequest) (string, error) {
			sel := rapid.SampledFrom(selectors[1:]).Draw(t, "sel")
			v := rapid.SampledFrom(verdicts).Draw(t, "verdict")
			if v == "THAT'S IS" && rapid.IntRange(0, 9).Draw(t, "accept") > 0 {
				v = "CAN'T FIND: not yet"
			}
			return fmt.Sprintf("SELECTOR: %s | %s", sel, v), nil
		})
		excludedSoFar := map[string]bool{}
		pages := snapshotterFunc(func(ctx context.Context, scope string) (*schemas.SnapshotNode, error) {
			if excludedSoFar[scope] {
				t.Fatalf("re-entered excluded scope %q", scope)
			}
			return &schemas.SnapshotNode{Tag: "div"}, nil
		})

		r := New(oracle, pages, Options{MaxIterations: budget, RootSelector: "html"}, zap.NewNop())
		r.onExclude = func(scope string) { excludedSoFar[scope] = true }
		res, err := r.Resolve(context.Background(), "target")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Iterations > budget {
			t.Fatalf("used %d iterations, budget %d", res.Iterations, budget)
		}
		if res.Found && res.Selector == "" {
			t.Fatalf("found without a selector")
		}
	})
}

type snapshotterFunc func(ctx context.Context, scope string) (*schemas.SnapshotNode, error)

func (f snapshotterFunc) Snapshot(ctx context.Context, scope string, _ schemas.SnapshotOptions) (*schemas.SnapshotNode, error) {
	return f(ctx, scope)
}
