package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const writeDescription = `Writes content to a file, creating it if needed.

Usage:
- path is required and may be relative to the working directory
- Parent directories are created automatically
- Overwrites existing content; use edit_file for targeted changes`

// WriteTool writes whole files.
type WriteTool struct {
	workDir string
}

// WriteInput is the write_file argument shape.
type WriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewWriteTool creates the write_file tool.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{workDir: workDir}
}

func (t *WriteTool) Name() string        { return "write_file" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path to write"},
			"content": {"type": "string", "description": "Full file content"}
		},
		"required": ["path", "content"]
	}`)
}

// Classify grades writes inside the working directory Sensitive; writes
// escaping it are Destructive and therefore always prompt.
func (t *WriteTool) Classify(args *value.Map) permission.DangerClass {
	var in WriteInput
	_ = args.DecodeInto(&in)
	if !withinDir(resolvePath(t.workDir, in.Path), t.workDir) {
		return permission.Destructive
	}
	return permission.Sensitive
}

func (t *WriteTool) Key(args *value.Map) permission.Key {
	var in WriteInput
	_ = args.DecodeInto(&in)
	return permission.Key{Tool: t.Name(), Scope: normalizeScope(in.Path)}
}

func (t *WriteTool) Timeout() time.Duration { return 10 * time.Second }

func (t *WriteTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in WriteInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path := resolvePath(t.workDir, in.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Wrote %s", in.Path),
		Output: fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.Path),
		Metadata: map[string]any{
			"path":  in.Path,
			"bytes": len(in.Content),
		},
	}, nil
}
