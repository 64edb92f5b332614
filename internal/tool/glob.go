package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const globDescription = `Finds files matching a glob pattern.

Usage:
- pattern supports ** for recursive matching (e.g. "**/*.go")
- path scopes the search root (defaults to the working directory)`

const maxGlobResults = 500

// GlobTool finds files by pattern.
type GlobTool struct {
	workDir string
}

// GlobInput is the find_files argument shape.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates the find_files tool.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) Name() string        { return "find_files" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Glob pattern, ** matches recursively"},
			"path": {"type": "string", "description": "Search root (defaults to the working directory)"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

func (t *GlobTool) Key(args *value.Map) permission.Key {
	var in GlobInput
	_ = args.DecodeInto(&in)
	scope := in.Pattern
	if in.Path != "" {
		scope = normalizeScope(in.Path) + ":" + in.Pattern
	}
	return permission.Key{Tool: t.Name(), Scope: scope}
}

func (t *GlobTool) Timeout() time.Duration { return 30 * time.Second }

func (t *GlobTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in GlobInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	root := t.workDir
	if in.Path != "" {
		root = resolvePath(t.workDir, in.Path)
	}

	matches, err := doublestar.Glob(os.DirFS(root), in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", in.Pattern, err)
	}

	truncated := false
	if len(matches) > maxGlobResults {
		matches = matches[:maxGlobResults]
		truncated = true
	}

	output := strings.Join(matches, "\n")
	if truncated {
		output += "\n\n(results truncated)"
	}
	if len(matches) == 0 {
		output = "No files matched."
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d files for %s", len(matches), in.Pattern),
		Output: output,
		Metadata: map[string]any{
			"pattern": in.Pattern,
			"count":   len(matches),
		},
	}, nil
}
