package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/pilot-cli/internal/capability"
)

// ErrElementNotFound is returned by the find_element capability when the
// search ends without a selector.
var ErrElementNotFound = errors.New("element not found")

// FindElementSpec exposes the resolver to the step oracle as find_element.
func FindElementSpec(r *Resolver) capability.Spec {
	return capability.Spec{
		Name: "find_element",
		Description: "Finds the CSS selector of an element on the current page from a plain-language description, " +
			"e.g. \"the search input in the header\". Returns the selector to use with click/type/get_element_text.",
		Params: []capability.Param{
			{Name: "description", Type: capability.TypeString, Required: true, Description: "What the element looks like or does."},
		},
		Handler: func(ctx context.Context, args capability.Args) (string, error) {
			desc := args.String("description")
			res, err := r.Resolve(ctx, desc)
			if err != nil {
				return "", err
			}
			if !res.Found {
				return "", fmt.Errorf("%w: %q (searched %d scopes)", ErrElementNotFound, desc, res.Iterations)
			}
			return res.Selector, nil
		},
	}
}
