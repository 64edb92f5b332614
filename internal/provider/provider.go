// Package provider abstracts the language model behind a single Propose
// call. Adapters translate the step history into the model's wire format
// and translate the reply back into a structured proposal.
package provider

import (
	"context"

	"github.com/promptline-ai/promptline/internal/memory"
)

// Proposal is the model's next move: either a tool call, a completion
// with a summary, or a bare thought that advances neither.
type Proposal struct {
	// Thought is the free-form reasoning preceding the action, if any.
	Thought string

	// Call is the proposed tool invocation. Nil when the model did not
	// propose one.
	Call *memory.ToolCall

	// Done reports that the model declared the task complete.
	Done bool

	// Summary is the closing message when Done is set.
	Summary string
}

// Provider produces the next proposal from the task and the step
// history. The loop calls Propose sequentially, never concurrently.
type Provider interface {
	// Name identifies the provider in logs and doctor output.
	Name() string

	// Propose asks the model for its next move given the task and the
	// visible step history.
	Propose(ctx context.Context, task string, steps []memory.Step) (*Proposal, error)
}
