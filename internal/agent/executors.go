// internal/agent/executors.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/capability"
	"github.com/xkilldash9x/pilot-cli/internal/runstate"
)

// Dispatcher runs step actions against the capability registry and reports
// everything that happened as a history delta. It never fails: every error
// becomes an error entry and the next action still runs.
type Dispatcher struct {
	registry *capability.Registry
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *capability.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger.Named("dispatcher"),
	}
}

// Execute runs actions in order. Each action contributes its own record
// first, then an error or observation entry.
func (d *Dispatcher) Execute(ctx context.Context, actions []Action) runstate.Delta {
	var delta runstate.Delta
	for _, action := range actions {
		delta.Append(runstate.HistoryEntry{
			Kind:       runstate.KindAction,
			Capability: action.Name,
			Text:       action.String(),
		})

		out, err := d.execute(ctx, action)
		if err != nil {
			code := capability.Classify(err)
			d.logger.Warn("Action execution failed",
				zap.String("action", action.Name),
				zap.String("error_code", string(code)),
				zap.Error(err))
			delta.Append(runstate.HistoryEntry{
				Kind:       runstate.KindError,
				Capability: action.Name,
				Text:       fmt.Sprintf("%s (%s)", err.Error(), code),
			})
			continue
		}

		d.logger.Debug("Action executed", zap.String("action", action.Name), zap.Int("result_length", len(out)))
		if out != "" {
			delta.Append(runstate.HistoryEntry{
				Kind:       runstate.KindObservation,
				Capability: action.Name,
				Text:       out,
			})
		}
	}
	return delta
}

// execute resolves, validates and invokes one action. Handler failures and
// panics are reported as "unexpected error in <name>".
func (d *Dispatcher) execute(ctx context.Context, action Action) (out string, err error) {
	spec, err := d.registry.Lookup(action.Name)
	if err != nil {
		return "", err
	}
	args, err := spec.Validate(action.Parameters)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic recovered in capability handler",
				zap.String("action", action.Name),
				zap.Any("panic_value", r),
				zap.Stack("stack"))
			out, err = "", fmt.Errorf("unexpected error in %s: %w: %v", action.Name, capability.ErrHandlerPanic, r)
		}
	}()

	out, err = spec.Handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("unexpected error in %s: %w", action.Name, err)
	}
	return out, nil
}
