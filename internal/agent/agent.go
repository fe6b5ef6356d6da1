// Package agent is the orchestrator: it turns operator messages into tasks,
// tasks into plans, and plan goals into capability calls chosen by the
// oracle, with a bounded number of attempts per goal.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/capability"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/runstate"
)

const (
	defaultMaxAttempts = 4
	promptLabel        = "you>"
	quitCommand        = "off"
	currentURLCap      = "current_url"
)

// Agent runs one task at a time against a single browser session.
type Agent struct {
	oracle     schemas.LLMClient
	registry   *capability.Registry
	dispatcher *Dispatcher
	operator   Operator
	cfg        config.AgentConfig
	logger     *zap.Logger

	mu    sync.Mutex
	store *runstate.Store
}

// New creates an Agent.
func New(oracle schemas.LLMClient, registry *capability.Registry, operator Operator, cfg config.AgentConfig, logger *zap.Logger) *Agent {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	logger = logger.Named("agent")
	return &Agent{
		oracle:     oracle,
		registry:   registry,
		dispatcher: NewDispatcher(registry, logger),
		operator:   operator,
		cfg:        cfg,
		logger:     logger,
		store:      runstate.NewStore(""),
	}
}

// Context returns a snapshot of the current run context.
func (a *Agent) Context() runstate.Snapshot {
	return a.currentStore().Snapshot()
}

func (a *Agent) currentStore() *runstate.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store
}

// Run is the interactive session. It returns nil when the operator types
// "off" or input ends, and the context error on cancellation.
func (a *Agent) Run(ctx context.Context) error {
	a.operator.Say("What task should I carry out?")
	for {
		line, err := a.operator.Prompt(ctx, promptLabel)
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.operator.Say("Input closed, shutting down.")
				return nil
			}
			return err
		}

		message := strings.TrimSpace(line)
		if strings.EqualFold(message, quitCommand) {
			a.operator.Say("Shutting down...")
			return nil
		}
		if message == "" {
			continue
		}

		a.handleMessage(ctx, message)
		if err := ctx.Err(); err != nil {
			return err
		}
		a.operator.Say("What task should I carry out next?")
	}
}

// handleMessage processes one chat message. Its failures never end the
// session.
func (a *Agent) handleMessage(ctx context.Context, message string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Panic recovered while handling message",
				zap.Any("panic_value", r),
				zap.Stack("stack"))
			a.operator.Fail("Something went wrong while handling that message.")
		}
	}()

	task, ok := a.ExtractTask(ctx, message)
	if !ok {
		a.operator.Say("Please send a clear task to carry out.")
		return
	}

	err := a.Entrust(ctx, task)
	switch {
	case err == nil:
		a.operator.Say("Done: %s", task.Description)
	case isCancellation(err):
		a.logger.Info("Task canceled", zap.String("task_id", task.ID), zap.Error(err))
		a.operator.Warn("Task canceled.")
	case errors.Is(err, ErrMalformedPlan):
		a.logger.Warn("Could not build a plan", zap.String("task_id", task.ID), zap.Error(err))
		a.operator.Fail("I could not come up with a plan for this task.")
	case errors.Is(err, ErrGoalFailed):
		a.logger.Warn("Task aborted", zap.String("task_id", task.ID), zap.Error(err))
		a.operator.Fail("Could not complete the task within the allotted attempts: %v", err)
	default:
		a.logger.Error("Task failed", zap.String("task_id", task.ID), zap.Error(err))
		a.operator.Fail("Task failed: %v", err)
	}
}

// ExtractTask classifies message. Oracle and parse failures are logged and
// reported as "not a task".
func (a *Agent) ExtractTask(ctx context.Context, message string) (*Task, bool) {
	a.operator.Say("Trying to identify the task.")
	reply, err := a.ask(ctx, schemas.GenerationRequest{
		SystemPrompt: classifySystemPrompt,
		UserPrompt:   buildClassifyPrompt(message),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.1},
	})
	if err != nil {
		a.logger.Warn("Task classification request failed", zap.Error(err))
		return nil, false
	}

	description, ok, err := parseClassification(reply)
	if err != nil {
		a.logger.Warn("Unparseable task classification", zap.String("reply", reply), zap.Error(err))
		return nil, false
	}
	if !ok {
		a.logger.Debug("Message is not a task", zap.String("reason", description))
		return nil, false
	}

	task := &Task{ID: uuid.NewString(), RawMessage: message, Description: description}
	a.logger.Info("Task accepted", zap.String("task_id", task.ID), zap.String("task", task.Description))
	return task, true
}

// PlanTask asks the oracle to decompose task into goals.
func (a *Agent) PlanTask(ctx context.Context, task *Task) (Plan, error) {
	reply, err := a.ask(ctx, schemas.GenerationRequest{
		SystemPrompt: planSystemPrompt,
		UserPrompt:   buildPlanPrompt(task, a.registry.DescribeJSON()),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("plan request failed: %w", err)
	}
	plan, err := parsePlan(reply)
	if err != nil {
		a.logger.Debug("Rejected plan reply", zap.String("task_id", task.ID), zap.String("reply", reply))
		return nil, err
	}
	return plan, nil
}

// Entrust runs task from a fresh context: plan, then each goal in order. A
// failed goal aborts the rest of the plan.
func (a *Agent) Entrust(ctx context.Context, task *Task) error {
	a.mu.Lock()
	a.store = runstate.NewStore(task.Description)
	a.mu.Unlock()
	log := a.logger.With(zap.String("task_id", task.ID))

	a.operator.Say("Making a plan.")
	plan, err := a.PlanTask(ctx, task)
	if err != nil {
		return err
	}
	log.Info("Plan ready", zap.Strings("goals", plan))
	a.operator.Say("Plan: %s", strings.Join(plan, " -> "))

	for i, goal := range plan {
		a.operator.Say("Goal %d/%d: %s", i+1, len(plan), goal)
		outcome := a.ExecuteGoal(ctx, goal)
		log.Info("Goal finished",
			zap.String("goal", goal),
			zap.String("state", string(outcome.State)),
			zap.Int("attempts", outcome.Attempts))

		if !outcome.State.Done() {
			if outcome.Err != nil && isCancellation(outcome.Err) {
				return outcome.Err
			}
			return fmt.Errorf("%w: %q after %d attempts: %v", ErrGoalFailed, goal, outcome.Attempts, outcome.Err)
		}
	}
	return nil
}

// ExecuteGoal drives goal through the attempt loop on the current context.
func (a *Agent) ExecuteGoal(ctx context.Context, goal string) GoalOutcome {
	store := a.currentStore()
	out := GoalOutcome{Goal: goal, State: GoalPending}
	store.Apply(runstate.WithCurrentGoal(goal))
	out.State = GoalRunning

	for out.Attempts < a.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			out.State, out.Err = GoalFailed, err
			return out
		}
		out.Attempts++
		log := a.logger.With(zap.String("goal", goal), zap.Int("attempt", out.Attempts))

		state, err := a.attempt(ctx, store, log)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				out.State, out.Err = GoalFailed, ctxErr
				return out
			}
			if errors.Is(err, ErrHandoffAborted) {
				out.State, out.Err = GoalFailed, err
				return out
			}
			log.Warn("Step attempt failed", zap.Error(err))
			store.Apply(runstate.Delta{History: []runstate.HistoryEntry{{
				Kind: runstate.KindError,
				Text: fmt.Sprintf("attempt %d failed: %v", out.Attempts, err),
			}}})
			out.Err = err
			continue
		}
		if state.Done() {
			out.State, out.Err = state, nil
			return out
		}
	}

	out.State = GoalFailed
	if out.Err == nil {
		out.Err = fmt.Errorf("no success after %d attempts", out.Attempts)
	}
	return out
}

// attempt is one RUNNING iteration. It returns GoalRunning when actions were
// dispatched and the goal continues.
func (a *Agent) attempt(ctx context.Context, store *runstate.Store, log *zap.Logger) (state GoalState, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic recovered during step attempt",
				zap.Any("panic_value", r),
				zap.Stack("stack"))
			state, err = GoalRunning, fmt.Errorf("panic during step: %v", r)
		}
	}()

	a.refreshURL(ctx, store, log)
	snap := store.Snapshot()
	reply, err := a.ask(ctx, schemas.GenerationRequest{
		SystemPrompt: stepSystemPrompt,
		UserPrompt:   buildStepPrompt(snap, a.registry.DescribeJSON()),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	})
	if err != nil {
		return GoalRunning, fmt.Errorf("step request failed: %w", err)
	}

	step, err := parseStep(reply)
	if err != nil {
		log.Debug("Rejected step reply", zap.String("reply", reply))
		return GoalRunning, err
	}
	if len(step.IgnoredKeys) > 0 {
		log.Warn("Ignoring context keys outside the allowed set", zap.Strings("keys", step.IgnoredKeys))
	}

	store.Apply(step.Context)
	a.operator.Thought(step.Thought)

	switch step.Kind {
	case StepSuccess:
		return GoalSuccess, nil
	case StepHandoff:
		if err := a.WaitForHuman(ctx, step.Thought); err != nil {
			return GoalRunning, err
		}
		store.Apply(runstate.Note("the human completed the requested step"))
		return GoalHumanHandoff, nil
	default:
		log.Debug("Dispatching actions", zap.Int("count", len(step.Actions)))
		store.Apply(a.dispatcher.Execute(ctx, step.Actions))
		return GoalRunning, nil
	}
}

// refreshURL records the live page URL before each step prompt. Failures
// leave the previous value in place.
func (a *Agent) refreshURL(ctx context.Context, store *runstate.Store, log *zap.Logger) {
	url, err := a.registry.Call(ctx, currentURLCap, nil)
	if err != nil {
		log.Debug("Could not refresh current URL", zap.Error(err))
		return
	}
	if url != "" {
		store.Apply(runstate.WithCurrentURL(url))
	}
}

// WaitForHuman shows rationale and waits until an operator line is judged a
// confirmation. Only agent.human_wait_timeout and ctx bound the wait.
func (a *Agent) WaitForHuman(ctx context.Context, rationale string) error {
	parent := ctx
	if a.cfg.HumanWaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.HumanWaitTimeout)
		defer cancel()
	}
	stopped := func(err error) error {
		if parent.Err() != nil {
			return parent.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: no confirmation within %v", ErrHandoffAborted, a.cfg.HumanWaitTimeout)
		}
		return err
	}
	a.logger.Info("Waiting for the human", zap.String("rationale", rationale))
	a.operator.Warn("I need your help: %s", rationale)
	a.operator.Say("Tell me when you are done.")
	started := time.Now()

	for {
		line, err := a.operator.Prompt(ctx, promptLabel)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: operator input closed", ErrHandoffAborted)
			}
			return stopped(err)
		}
		message := strings.TrimSpace(line)
		if message == "" {
			continue
		}

		reply, err := a.ask(ctx, schemas.GenerationRequest{
			SystemPrompt: confirmSystemPrompt,
			UserPrompt:   buildConfirmPrompt(rationale, message),
			Tier:         schemas.TierFast,
			Options:      schemas.GenerationOptions{Temperature: 0},
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stopped(ctxErr)
			}
			a.logger.Warn("Confirmation request failed", zap.Error(err))
			a.operator.Say("I could not check that, please say again when you are done.")
			continue
		}
		if parseConfirmation(reply) {
			a.logger.Info("Human confirmed", zap.Duration("waited", time.Since(started)))
			return nil
		}
		a.operator.Say("Understood. Let me know when you are done.")
	}
}

// ask shows the thinking indicator and calls the oracle.
func (a *Agent) ask(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	a.operator.Thinking()
	return a.oracle.Generate(ctx, req)
}
