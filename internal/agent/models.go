// internal/agent/models.go
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/pilot-cli/internal/runstate"
)

// Task is an accepted user request. It is immutable once created.
type Task struct {
	ID          string `json:"id"`
	RawMessage  string `json:"raw_message"`
	Description string `json:"description"`
}

// Plan is the ordered list of goals for a Task.
type Plan []string

// Action is one capability invocation requested by the step oracle. It is
// validated against the registry only when dispatched.
type Action struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// String renders the parameters as compact JSON for the history.
func (a Action) String() string {
	params := a.Parameters
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(b)
}

// GoalState is the lifecycle state of one goal.
type GoalState string

const (
	GoalPending      GoalState = "PENDING"
	GoalRunning      GoalState = "RUNNING"
	GoalSuccess      GoalState = "SUCCESS"
	GoalHumanHandoff GoalState = "HUMAN_HANDOFF"
	GoalFailed       GoalState = "FAILED"
)

// Done reports whether the plan may move on to the next goal.
func (s GoalState) Done() bool {
	return s == GoalSuccess || s == GoalHumanHandoff
}

// GoalOutcome is the result of ExecuteGoal.
type GoalOutcome struct {
	Goal     string
	Attempts int
	State    GoalState
	// Err is set for FAILED outcomes.
	Err error
}

// StepKind is the shape of a step reply's actions field.
type StepKind int

const (
	StepActions StepKind = iota
	StepSuccess
	StepHandoff
)

const (
	actionsSuccess = "success"
	actionsHandoff = "wait_for_the_human"
)

// StepResponse is a validated step reply.
type StepResponse struct {
	Thought string
	Kind    StepKind
	Actions []Action
	// Context holds the changes the oracle reported; IgnoredKeys lists the
	// context keys outside the allowed set.
	Context     runstate.Delta
	IgnoredKeys []string
}

// isCancellation reports whether err came from a canceled or expired context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
