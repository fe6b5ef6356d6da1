// internal/agent/errors.go
package agent

import "errors"

var (
	// ErrMalformedPlan is returned by PlanTask when the reply is not a JSON
	// array of non-empty strings. The task is abandoned; the session goes on.
	ErrMalformedPlan = errors.New("malformed plan")
	// ErrMalformedStep marks a step reply that does not match the step shape.
	// It costs one attempt.
	ErrMalformedStep = errors.New("malformed step response")
	// ErrGoalFailed is returned by Entrust when a goal exhausts its attempts.
	ErrGoalFailed = errors.New("goal failed")
	// ErrHandoffAborted is returned when a human handoff ends without
	// confirmation.
	ErrHandoffAborted = errors.New("human handoff aborted")
)
