// Package memory holds the ordered log of agent steps fed to the model.
//
// The log is owned exclusively by one execution loop; the loop is
// single-threaded, so no locking happens here.
package memory

import (
	"fmt"
	"time"

	"github.com/promptline-ai/promptline/internal/value"
)

// StepKind discriminates the variants of a Step.
type StepKind int

const (
	// Thought is free-form model reasoning.
	Thought StepKind = iota
	// Action is a proposed tool call.
	Action
	// Observation is the result of executing (or refusing) an action.
	Observation
)

func (k StepKind) String() string {
	switch k {
	case Thought:
		return "thought"
	case Action:
		return "action"
	case Observation:
		return "observation"
	}
	return "unknown"
}

// ErrorKind classifies observation failures for the model and the operator.
type ErrorKind string

const (
	// ProviderError covers model/network failures; the loop continues.
	ProviderError ErrorKind = "provider_error"
	// ToolExecutionError covers nonzero exits, crashes and timeouts.
	ToolExecutionError ErrorKind = "tool_execution_error"
	// PolicyStoreError covers store I/O failures surfaced as observations.
	PolicyStoreError ErrorKind = "policy_store_error"
	// ProtocolViolation covers unregistered tools and malformed arguments.
	ProtocolViolation ErrorKind = "protocol_violation"
	// PermissionDenied covers calls refused by policy or by the user.
	PermissionDenied ErrorKind = "permission_denied"
)

// ToolCall is one immutable proposed action.
type ToolCall struct {
	ID        string
	Tool      string
	Arguments *value.Map
}

// Result is an observation payload: success with output, or a typed
// failure.
type Result struct {
	CallID  string
	Success bool
	Payload string
	Kind    ErrorKind
	Message string
}

// Step is one entry in the log.
type Step struct {
	Kind    StepKind
	Text    string    // Thought text or trim summary
	Call    *ToolCall // set when Kind == Action
	Result  *Result   // set when Kind == Observation
	Created time.Time
}

// Trimmer decides which steps survive when the log exceeds its bound. The
// returned slice must preserve causal order.
type Trimmer interface {
	Trim(steps []Step, bound int) []Step
}

// Log is the append-only step sequence with a configurable bound.
type Log struct {
	steps   []Step
	bound   int
	trimmer Trimmer
}

// Option configures a Log.
type Option func(*Log)

// WithTrimmer overrides the default drop-oldest trimmer.
func WithTrimmer(tr Trimmer) Option {
	return func(l *Log) { l.trimmer = tr }
}

// NewLog creates a log bounded to the given number of steps. A bound of
// zero or less means unbounded.
func NewLog(bound int, opts ...Option) *Log {
	l := &Log{bound: bound, trimmer: dropOldest{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendThought records model reasoning.
func (l *Log) AppendThought(text string) {
	l.steps = append(l.steps, Step{Kind: Thought, Text: text, Created: time.Now()})
}

// AppendAction records a proposed tool call.
func (l *Log) AppendAction(call ToolCall) {
	l.steps = append(l.steps, Step{Kind: Action, Call: &call, Created: time.Now()})
}

// AppendObservation records an action's result.
func (l *Log) AppendObservation(res Result) {
	l.steps = append(l.steps, Step{Kind: Observation, Result: &res, Created: time.Now()})
}

// Steps returns a copy of the current sequence.
func (l *Log) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Len returns the number of steps.
func (l *Log) Len() int { return len(l.steps) }

// Trim applies the trim policy when the log exceeds its bound. The loop
// calls this before each thinking transition.
func (l *Log) Trim() {
	if l.bound <= 0 || len(l.steps) <= l.bound {
		return
	}
	l.steps = l.trimmer.Trim(l.steps, l.bound)
}

// dropOldest removes the oldest steps and replaces them with a single
// summary marker. It never splits an Action from its Observation, so the
// most recent unresolved pair always survives intact.
type dropOldest struct{}

func (dropOldest) Trim(steps []Step, bound int) []Step {
	if len(steps) <= bound {
		return steps
	}

	// Reserve one slot for the summary marker.
	start := len(steps) - bound + 1
	if start < 1 {
		start = 1
	}

	// Never begin the kept window on an observation: back up to include
	// the action it belongs to.
	for start > 0 && steps[start].Kind == Observation {
		start--
	}
	if start == 0 {
		return steps
	}

	summary := Step{
		Kind:    Thought,
		Text:    fmt.Sprintf("(%d earlier steps trimmed from context)", start),
		Created: time.Now(),
	}

	kept := make([]Step, 0, len(steps)-start+1)
	kept = append(kept, summary)
	kept = append(kept, steps[start:]...)
	return kept
}
