package agent

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pilot-cli/internal/llmutil"
	"github.com/xkilldash9x/pilot-cli/internal/runstate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	statusTask    = "TASK"
	statusNotTask = "NOT_TASK"
)

// parseClassification reads a `STATUS | description` reply. ok is true only
// for the TASK status with a non-empty description.
func parseClassification(reply string) (description string, ok bool, err error) {
	for _, line := range strings.Split(llmutil.StripFences(reply), "\n") {
		status, rest, found := strings.Cut(line, "|")
		if !found {
			continue
		}
		status = strings.Trim(strings.TrimSpace(status), "[]*`")
		rest = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), "|"))
		switch strings.ToUpper(status) {
		case statusTask:
			return rest, rest != "", nil
		case statusNotTask:
			return rest, false, nil
		default:
			return "", false, fmt.Errorf("unknown classification status %q", status)
		}
	}
	return "", false, fmt.Errorf("classification reply has no `STATUS | description` line: %q", llmutil.Truncate(reply, 200))
}

// parsePlan decodes a JSON array of goal descriptions.
func parsePlan(reply string) (Plan, error) {
	goals, err := llmutil.ParseStrictJSONResponse[[]string](reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if len(*goals) == 0 {
		return nil, fmt.Errorf("%w: the plan has no goals", ErrMalformedPlan)
	}
	plan := make(Plan, 0, len(*goals))
	for i, g := range *goals {
		g = strings.TrimSpace(g)
		if g == "" {
			return nil, fmt.Errorf("%w: goal %d is empty", ErrMalformedPlan, i+1)
		}
		plan = append(plan, g)
	}
	return plan, nil
}

type rawStep struct {
	Thought string             `json:"thought"`
	Actions stdjson.RawMessage `json:"actions"`
	Context map[string]any     `json:"context"`
}

type contextSetter func(string) runstate.Delta

var allowedContextKeys = map[string]contextSetter{
	"current_url":  runstate.WithCurrentURL,
	"user_task":    runstate.WithUserTask,
	"current_goal": runstate.WithCurrentGoal,
}

// parseStep validates a step reply against its three accepted shapes.
// Unknown top-level fields are rejected; unknown context keys are reported
// in IgnoredKeys.
func parseStep(reply string) (*StepResponse, error) {
	raw, err := llmutil.ParseStrictJSONResponse[rawStep](reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStep, err)
	}

	step := &StepResponse{Thought: strings.TrimSpace(raw.Thought)}
	actions := bytes.TrimSpace(raw.Actions)
	switch {
	case len(actions) == 0 || bytes.Equal(actions, []byte("null")):
		return nil, fmt.Errorf("%w: missing \"actions\"", ErrMalformedStep)

	case actions[0] == '"':
		var word string
		if err := json.Unmarshal(actions, &word); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStep, err)
		}
		switch strings.ToLower(strings.TrimSpace(word)) {
		case actionsSuccess:
			step.Kind = StepSuccess
		case actionsHandoff:
			step.Kind = StepHandoff
		default:
			return nil, fmt.Errorf("%w: \"actions\" must be %q, %q or a list, got %q", ErrMalformedStep, actionsSuccess, actionsHandoff, word)
		}

	case actions[0] == '[':
		list, err := llmutil.ParseStrictJSONResponse[[]Action](string(actions))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStep, err)
		}
		for i, a := range *list {
			if strings.TrimSpace(a.Name) == "" {
				return nil, fmt.Errorf("%w: action %d has no name", ErrMalformedStep, i+1)
			}
		}
		step.Kind = StepActions
		step.Actions = *list

	default:
		return nil, fmt.Errorf("%w: \"actions\" must be a string or a list", ErrMalformedStep)
	}

	keys := make([]string, 0, len(raw.Context))
	for k := range raw.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, allowed := allowedContextKeys[k]
		v, isString := raw.Context[k].(string)
		if !allowed || !isString {
			step.IgnoredKeys = append(step.IgnoredKeys, k)
			continue
		}
		step.Context = step.Context.Merge(set(v))
	}
	return step, nil
}

// parseConfirmation reads the yes/no judgment of a handoff reply.
func parseConfirmation(reply string) bool {
	answer := strings.ToLower(strings.TrimSpace(llmutil.StripFences(reply)))
	answer = strings.Trim(answer, ".!\"'` ")
	return answer == "true" || answer == "yes"
}
