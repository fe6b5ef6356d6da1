// Package capability is the closed catalog of operations the step oracle may
// request. It is built once from an explicit table and never uses reflection.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ParamType is the declared type of a capability parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param declares one named parameter.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
}

// Handler performs a capability. A non-empty result is reported back to the
// oracle as an observation.
type Handler func(ctx context.Context, args Args) (string, error)

// Spec is one catalog entry. Internal specs are callable by the program but
// hidden from the oracle.
type Spec struct {
	Name        string
	Description string
	Params      []Param
	Internal    bool
	Handler     Handler
}

// Registry is an immutable name to Spec table.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry validates the table and builds the registry.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("capability with empty name")
		}
		if s.Handler == nil {
			return nil, fmt.Errorf("capability %q has no handler", s.Name)
		}
		if _, dup := r.specs[s.Name]; dup {
			return nil, fmt.Errorf("capability %q registered twice", s.Name)
		}
		seen := make(map[string]bool, len(s.Params))
		for _, p := range s.Params {
			if seen[p.Name] {
				return nil, fmt.Errorf("capability %q declares parameter %q twice", s.Name, p.Name)
			}
			seen[p.Name] = true
			switch p.Type {
			case TypeString, TypeInteger, TypeNumber, TypeBoolean:
			default:
				return nil, fmt.Errorf("capability %q parameter %q has unknown type %q", s.Name, p.Name, p.Type)
			}
		}
		r.specs[s.Name] = s
	}
	return r, nil
}

// Lookup returns the public spec for name.
func (r *Registry) Lookup(name string) (Spec, error) {
	s, ok := r.specs[name]
	if !ok || s.Internal {
		return Spec{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// Call invokes any registered capability, internal ones included.
func (r *Registry) Call(ctx context.Context, name string, params map[string]any) (string, error) {
	s, ok := r.specs[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	args, err := s.Validate(params)
	if err != nil {
		return "", err
	}
	return s.Handler(ctx, args)
}

// Names lists the public capability names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name, s := range r.specs {
		if !s.Internal {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ParamDescription is the rendered form of a Param.
type ParamDescription struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required" yaml:"required"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Description is the rendered form of a Spec.
type Description struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Parameters  []ParamDescription `json:"parameters" yaml:"parameters"`
}

// Describe returns the public catalog sorted by name.
func (r *Registry) Describe() []Description {
	names := r.Names()
	out := make([]Description, 0, len(names))
	for _, name := range names {
		s := r.specs[name]
		d := Description{Name: s.Name, Description: s.Description, Parameters: []ParamDescription{}}
		for _, p := range s.Params {
			d.Parameters = append(d.Parameters, ParamDescription{
				Name:        p.Name,
				Type:        string(p.Type),
				Required:    p.Required,
				Default:     p.Default,
				Description: p.Description,
			})
		}
		out = append(out, d)
	}
	return out
}

// DescribeJSON renders Describe as indented JSON for prompts.
func (r *Registry) DescribeJSON() string {
	b, err := json.MarshalIndent(r.Describe(), "", "  ")
	if err != nil {
		// Descriptions hold only strings, bools, and JSON-native defaults.
		return "[]"
	}
	return string(b)
}

// Validate checks params against the declared Params, coerces JSON numbers to the
// declared types and fills defaults.
func (s Spec) Validate(params map[string]any) (Args, error) {
	declared := make(map[string]Param, len(s.Params))
	for _, p := range s.Params {
		declared[p.Name] = p
	}

	var unknown []string
	for name := range params {
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w for %s: unknown parameter(s) %s", ErrInvalidParameters, s.Name, strings.Join(unknown, ", "))
	}

	args := make(Args, len(s.Params))
	for _, p := range s.Params {
		raw, present := params[p.Name]
		if !present || raw == nil {
			if p.Required {
				return nil, fmt.Errorf("%w for %s: missing required parameter %q", ErrInvalidParameters, s.Name, p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}
		v, err := coerce(p.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: parameter %q: %v", ErrInvalidParameters, s.Name, p.Name, err)
		}
		args[p.Name] = v
	}
	return args, nil
}

func coerce(t ParamType, raw any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case TypeNumber:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f, nil
			}
		}
	case TypeInteger:
		switch n := raw.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int(n), nil
			}
			return nil, fmt.Errorf("expected integer, got %v", n)
		case json.Number:
			i, err := n.Int64()
			if err == nil {
				return int(i), nil
			}
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, raw)
}

// Args are validated arguments. Accessors return zero values for absent keys.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int {
	i, _ := a[name].(int)
	return i
}

func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether name was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}
