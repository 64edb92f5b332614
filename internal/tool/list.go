package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const listDescription = `Lists files and directories at a path.

Usage:
- path defaults to the working directory
- Directories are suffixed with /`

// ListTool lists directory contents.
type ListTool struct {
	workDir string
}

// ListInput is the list_files argument shape.
type ListInput struct {
	Path string `json:"path,omitempty"`
}

// NewListTool creates the list_files tool.
func NewListTool(workDir string) *ListTool {
	return &ListTool{workDir: workDir}
}

func (t *ListTool) Name() string        { return "list_files" }
func (t *ListTool) Description() string { return listDescription }

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory to list (defaults to the working directory)"}
		}
	}`)
}

func (t *ListTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

func (t *ListTool) Key(args *value.Map) permission.Key {
	var in ListInput
	_ = args.DecodeInto(&in)
	return permission.Key{Tool: t.Name(), Scope: normalizeScope(in.Path)}
}

func (t *ListTool) Timeout() time.Duration { return 10 * time.Second }

func (t *ListTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in ListInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if in.Path == "" {
		in.Path = "."
	}

	entries, err := os.ReadDir(resolvePath(t.workDir, in.Path))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &Result{
		Title:  fmt.Sprintf("Listed %s", in.Path),
		Output: strings.Join(names, "\n"),
		Metadata: map[string]any{
			"path":  in.Path,
			"count": len(names),
		},
	}, nil
}
