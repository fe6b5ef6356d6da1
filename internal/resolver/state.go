package resolver

import "fmt"

// SearchState is the live descent path plus the set of scopes ruled out. The
// excluded set only grows and no excluded scope is ever pushed.
type SearchState struct {
	Root     string
	Stack    []string
	excluded map[string]struct{}
	order    []string

	onExclude func(scope string)
}

// NewSearchState starts at root.
func NewSearchState(root string) *SearchState {
	return &SearchState{
		Root:     root,
		Stack:    []string{root},
		excluded: make(map[string]struct{}),
	}
}

// Top is the current scope.
func (s *SearchState) Top() string {
	if len(s.Stack) == 0 {
		return ""
	}
	return s.Stack[len(s.Stack)-1]
}

// IsExcluded reports whether selector was ruled out.
func (s *SearchState) IsExcluded(selector string) bool {
	_, ok := s.excluded[selector]
	return ok
}

// ExcludedList returns excluded scopes in exclusion order.
func (s *SearchState) ExcludedList() []string {
	return append([]string(nil), s.order...)
}

// Descend pushes selector as the new scope. Excluded selectors and
// selectors already on the path are rejected, so the stack never holds the
// same scope twice.
func (s *SearchState) Descend(selector string) error {
	if selector == "" {
		return fmt.Errorf("an empty selector cannot be a scope")
	}
	if s.IsExcluded(selector) {
		return fmt.Errorf("the selector %q was already excluded; nominate a different scope", selector)
	}
	if selector == s.Top() {
		return fmt.Errorf("the selector %q is already the current scope; nominate a child or answer CAN'T FIND", selector)
	}
	if s.onStack(selector) >= 0 {
		return fmt.Errorf("the selector %q is already on the current path; nominate a child of the current scope or answer CAN'T FIND", selector)
	}
	s.Stack = append(s.Stack, selector)
	return nil
}

// Backtrack excludes the current scope and pops it. A usable fallback that
// is an ancestor on the path becomes the top again; any other usable
// fallback is pushed. When the stack empties the root is re-entered unless
// it is excluded itself; false means there is nowhere left to search.
func (s *SearchState) Backtrack(fallback string) bool {
	if len(s.Stack) > 0 {
		s.exclude(s.Top())
		s.Stack = s.Stack[:len(s.Stack)-1]
	}

	if fallback != "" && !s.IsExcluded(fallback) {
		if i := s.onStack(fallback); i >= 0 {
			s.Stack = s.Stack[:i+1]
		} else {
			s.Stack = append(s.Stack, fallback)
		}
	}
	if len(s.Stack) == 0 {
		if s.IsExcluded(s.Root) {
			return false
		}
		s.Stack = append(s.Stack, s.Root)
	}
	return true
}

// onStack returns the position of selector on the path, or -1.
func (s *SearchState) onStack(selector string) int {
	for i, scope := range s.Stack {
		if scope == selector {
			return i
		}
	}
	return -1
}

func (s *SearchState) exclude(selector string) {
	if _, ok := s.excluded[selector]; ok {
		return
	}
	s.excluded[selector] = struct{}{}
	s.order = append(s.order, selector)
	if s.onExclude != nil {
		s.onExclude(selector)
	}
}
