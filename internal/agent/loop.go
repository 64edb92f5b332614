// Package agent runs the execution loop: think, gate, execute, observe.
//
// The loop is a single-goroutine state machine. It owns the step log and
// is the only writer to it; the permission engine is the only gate
// between a proposed action and its execution.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/promptline-ai/promptline/internal/event"
	"github.com/promptline-ai/promptline/internal/logging"
	"github.com/promptline-ai/promptline/internal/memory"
	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/provider"
	"github.com/promptline-ai/promptline/internal/tool"
	"github.com/promptline-ai/promptline/internal/value"
)

// State is the loop's lifecycle position.
type State int

const (
	// Thinking means the loop is waiting on the provider.
	Thinking State = iota
	// AwaitingPermission means the loop is suspended on a user decision.
	AwaitingPermission
	// Executing means a tool call is running.
	Executing
	// Finished means the model declared completion.
	Finished
	// Aborted means the loop stopped without completing.
	Aborted
)

func (s State) String() string {
	switch s {
	case Thinking:
		return "thinking"
	case AwaitingPermission:
		return "awaiting_permission"
	case Executing:
		return "executing"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// AbortReason explains a terminal Aborted state.
type AbortReason string

const (
	// AbortUser means the user interrupted the run.
	AbortUser AbortReason = "user_abort"
	// AbortStepLimit means the loop hit its step ceiling.
	AbortStepLimit AbortReason = "step_limit_exceeded"
	// AbortProvider means the provider kept failing after retries.
	AbortProvider AbortReason = "provider_failure"
)

// DefaultMaxSteps bounds loop iterations when the config does not.
const DefaultMaxSteps = 50

// maxConsecutiveProviderErrors bounds back-to-back Propose failures
// before the run is declared unrecoverable.
const maxConsecutiveProviderErrors = 3

// stallNudgeAfter is the number of consecutive bare thoughts before the
// loop reminds the model of the output protocol.
const stallNudgeAfter = 2

// Prompter presents a permission request to the user and returns their
// decision. Present blocks; the loop stays in AwaitingPermission until it
// returns.
type Prompter interface {
	Present(ctx context.Context, req permission.Request) (permission.Decision, error)
}

// Outcome is the terminal result of a run.
type Outcome struct {
	State   State
	Reason  AbortReason // set when State == Aborted
	Summary string      // set when State == Finished
	Steps   int
	Err     error
}

// Loop drives one task from prompt to completion.
type Loop struct {
	provider provider.Provider
	registry *tool.Registry
	engine   *permission.Engine
	prompter Prompter
	log      *memory.Log
	maxSteps int
	logger   zerolog.Logger

	state State
	doom  doomLoopDetector
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxSteps overrides the step ceiling.
func WithMaxSteps(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxSteps = n
		}
	}
}

// WithMemory replaces the default step log.
func WithMemory(log *memory.Log) LoopOption {
	return func(l *Loop) { l.log = log }
}

// New creates a loop wiring the provider, tool registry, policy engine
// and prompter together.
func New(p provider.Provider, reg *tool.Registry, eng *permission.Engine, prompter Prompter, opts ...LoopOption) *Loop {
	l := &Loop{
		provider: p,
		registry: reg,
		engine:   eng,
		prompter: prompter,
		maxSteps: DefaultMaxSteps,
		logger:   logging.Component("agent"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = memory.NewLog(2 * l.maxSteps)
	}
	return l
}

// State returns the loop's current state.
func (l *Loop) State() State { return l.state }

// Memory returns the loop's step log.
func (l *Loop) Memory() *memory.Log { return l.log }

// Run executes the task until the model finishes, the step ceiling is
// hit, or the context is cancelled. It never returns while a tool is
// still running.
func (l *Loop) Run(ctx context.Context, task string) Outcome {
	providerFailures := 0
	bareThoughts := 0

	for step := 1; ; step++ {
		if step > l.maxSteps {
			return l.abort(AbortStepLimit, fmt.Errorf("step limit of %d exceeded", l.maxSteps))
		}
		if ctx.Err() != nil {
			return l.abort(AbortUser, ctx.Err())
		}

		l.state = Thinking
		l.log.Trim()
		event.Publish(event.Event{Type: event.StepStarted, Data: event.StepStartedData{Step: step}})

		proposal, err := l.provider.Propose(ctx, task, l.log.Steps())
		if err != nil {
			if ctx.Err() != nil {
				return l.abort(AbortUser, ctx.Err())
			}
			providerFailures++
			l.logger.Warn().Err(err).Int("failures", providerFailures).Msg("provider error")
			if providerFailures >= maxConsecutiveProviderErrors {
				return l.abort(AbortProvider, err)
			}
			l.observe(memory.Result{
				Kind:    memory.ProviderError,
				Message: err.Error(),
			})
			continue
		}
		providerFailures = 0

		if proposal.Thought != "" {
			l.log.AppendThought(proposal.Thought)
		}

		if proposal.Done {
			l.state = Finished
			event.Publish(event.Event{Type: event.LoopFinished, Data: event.LoopFinishedData{
				Reason: "finished", Steps: step,
			}})
			return Outcome{State: Finished, Summary: proposal.Summary, Steps: step}
		}

		if proposal.Call == nil {
			bareThoughts++
			if bareThoughts >= stallNudgeAfter {
				l.observe(memory.Result{
					Kind:    memory.ProtocolViolation,
					Message: `Respond with a tool call as {"tool": ..., "args": ...} or finish with FINISH.`,
				})
			}
			continue
		}
		bareThoughts = 0

		l.runAction(ctx, proposal.Call)
		if ctx.Err() != nil {
			return l.abort(AbortUser, ctx.Err())
		}
	}
}

// runAction takes one proposed call through gating and execution,
// always leaving a paired observation in the log.
func (l *Loop) runAction(ctx context.Context, call *memory.ToolCall) {
	l.log.AppendAction(*call)
	event.Publish(event.Event{Type: event.ActionProposed, Data: event.ActionProposedData{
		CallID: call.ID, Tool: call.Tool,
	}})

	tl, err := l.registry.Prepare(call.Tool, call.Arguments)
	if err != nil {
		l.observeCall(call.ID, memory.Result{
			Kind:    memory.ProtocolViolation,
			Message: err.Error(),
		})
		return
	}

	if l.doom.Check(call) {
		l.observeCall(call.ID, memory.Result{
			Kind:    memory.ProtocolViolation,
			Message: fmt.Sprintf("the same %s call has been proposed %d times in a row; try a different approach", call.Tool, doomLoopThreshold),
		})
		return
	}

	danger := tl.Classify(call.Arguments)
	key := tl.Key(call.Arguments)

	switch l.engine.Decide(key, danger) {
	case permission.Deny:
		l.observeCall(call.ID, memory.Result{
			Kind:    memory.PermissionDenied,
			Message: fmt.Sprintf("%s denied by policy", key),
		})
		return
	case permission.Ask:
		allowed, err := l.askPermission(ctx, key, danger, call)
		if err != nil {
			l.observeCall(call.ID, memory.Result{
				Kind:    memory.PermissionDenied,
				Message: "permission prompt aborted",
			})
			return
		}
		if !allowed {
			l.observeCall(call.ID, memory.Result{
				Kind:    memory.PermissionDenied,
				Message: fmt.Sprintf("%s denied by user", key),
			})
			return
		}
	}

	l.execute(ctx, tl, call)
}

// askPermission suspends the loop on the prompter and records the answer
// through the engine.
func (l *Loop) askPermission(ctx context.Context, key permission.Key, danger permission.DangerClass, call *memory.ToolCall) (bool, error) {
	l.state = AwaitingPermission
	req := l.engine.NewRequest(key, danger, callTitle(call))
	event.Publish(event.Event{Type: event.PermissionRequired, Data: event.PermissionRequiredData{
		ID:     req.ID,
		Tool:   key.Tool,
		Scope:  key.Scope,
		Danger: danger.String(),
		Title:  req.Title,
	}})

	decision, err := l.prompter.Present(ctx, req)
	if err != nil {
		return false, err
	}

	if err := l.engine.Resolve(req, decision); err != nil {
		// The answer still governs this call; only durability was lost.
		l.logger.Error().Err(err).Str("key", key.String()).Msg("failed to persist permission decision")
		l.observe(memory.Result{
			Kind:    memory.PolicyStoreError,
			Message: err.Error(),
		})
	}
	return decision.Allows(), nil
}

// execute runs the authorized call under its tool timeout.
func (l *Loop) execute(ctx context.Context, tl tool.Tool, call *memory.ToolCall) {
	l.state = Executing

	timeout := tl.Timeout()
	if timeout <= 0 {
		timeout = tool.DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := tl.Execute(execCtx, call.Arguments, &tool.Context{
		WorkDir: l.registry.WorkDir(),
		CallID:  call.ID,
	})
	if err != nil {
		l.observeCall(call.ID, memory.Result{
			Kind:    memory.ToolExecutionError,
			Message: err.Error(),
		})
		return
	}

	l.observeCall(call.ID, memory.Result{
		Success: true,
		Payload: res.Output,
	})
}

func (l *Loop) observe(res memory.Result) {
	l.observeCall("", res)
}

func (l *Loop) observeCall(callID string, res memory.Result) {
	res.CallID = callID
	l.log.AppendObservation(res)
	event.Publish(event.Event{Type: event.ObservationRecorded, Data: event.ObservationRecordedData{
		CallID: callID, Success: res.Success,
	}})
}

func (l *Loop) abort(reason AbortReason, err error) Outcome {
	l.state = Aborted
	event.Publish(event.Event{Type: event.LoopFinished, Data: event.LoopFinishedData{
		Reason: string(reason), Steps: l.log.Len(),
	}})
	if errors.Is(err, context.Canceled) {
		err = fmt.Errorf("run interrupted")
	}
	return Outcome{State: Aborted, Reason: reason, Steps: l.log.Len(), Err: err}
}

func callTitle(call *memory.ToolCall) string {
	if call.Arguments == nil || call.Arguments.Len() == 0 {
		return call.Tool
	}
	return fmt.Sprintf("%s %s", call.Tool, firstArg(call.Arguments))
}

func firstArg(args *value.Map) string {
	keys := args.Keys()
	if len(keys) == 0 {
		return ""
	}
	v, _ := args.Get(keys[0])
	return v.Text()
}
