package tool

import (
	"fmt"

	"github.com/promptline-ai/promptline/internal/value"
)

// Registry maps tool names to their contracts. Registration happens once at
// startup; afterwards the registry is read-only, so lookups need no
// synchronization.
type Registry struct {
	workDir string
	tools   map[string]Tool
	order   []string
}

// NewRegistry creates an empty registry rooted at workDir.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		workDir: workDir,
		tools:   make(map[string]Tool),
	}
}

// Register adds a tool. Startup only; later registration would race with
// lookups.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns all tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// WorkDir returns the registry's working directory.
func (r *Registry) WorkDir() string { return r.workDir }

// Prepare looks the tool up and validates arguments against its declared
// schema. Failures are the caller's protocol violations, never panics.
func (r *Registry) Prepare(name string, args *value.Map) (Tool, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if args == nil {
		args = value.NewMap()
	}
	if err := args.ValidateAgainst(name, t.Parameters()); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultRegistry builds a registry with every built-in tool.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry(workDir)
	r.Register(NewReadTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewEditTool(workDir))
	r.Register(NewListTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewShellTool(workDir))
	r.Register(NewWebFetchTool())
	r.Register(NewGitStatusTool(workDir))
	r.Register(NewGitDiffTool(workDir))
	r.Register(NewGitCommitTool(workDir))
	return r
}
