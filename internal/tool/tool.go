// Package tool defines the invocation contract for local actions and the
// registry of built-in tools.
package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

// DefaultTimeout bounds tool execution when a tool does not declare its
// own.
const DefaultTimeout = 30 * time.Second

// Tool is the contract every local action implements. Classify and Key are
// pure functions of the arguments: identical calls always classify and
// scope identically.
type Tool interface {
	// Name is the identifier the model calls the tool by.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Parameters is the JSON Schema the arguments are validated against.
	Parameters() json.RawMessage

	// Classify grades the danger of a call with these arguments.
	Classify(args *value.Map) permission.DangerClass

	// Key derives the permission scope for these arguments.
	Key(args *value.Map) permission.Key

	// Timeout is the execution deadline for one call. Zero means
	// DefaultTimeout.
	Timeout() time.Duration

	// Execute runs the call. The context carries the deadline; a tool
	// spawning subprocesses must kill them when it expires.
	Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error)
}

// Context provides per-call execution context.
type Context struct {
	WorkDir string
	CallID  string
}

// Result is a successful tool output.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
