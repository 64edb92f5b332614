package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const maxReadBytes = 256 * 1024

const readDescription = `Reads a file from the local filesystem.

Usage:
- path is required and may be relative to the working directory
- offset/limit select a line range for large files
- Output is the file content with line numbers`

// ReadTool reads files.
type ReadTool struct {
	workDir string
}

// ReadInput is the read_file argument shape.
type ReadInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// NewReadTool creates the read_file tool.
func NewReadTool(workDir string) *ReadTool {
	return &ReadTool{workDir: workDir}
}

func (t *ReadTool) Name() string        { return "read_file" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path to read"},
			"offset": {"type": "integer", "description": "First line to read (1-based)"},
			"limit": {"type": "integer", "description": "Maximum number of lines"}
		},
		"required": ["path"]
	}`)
}

func (t *ReadTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

func (t *ReadTool) Key(args *value.Map) permission.Key {
	var in ReadInput
	_ = args.DecodeInto(&in)
	return permission.Key{Tool: t.Name(), Scope: normalizeScope(in.Path)}
}

func (t *ReadTool) Timeout() time.Duration { return 10 * time.Second }

func (t *ReadTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in ReadInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path := resolvePath(t.workDir, in.Path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", in.Path)
	}
	if info.Size() > maxReadBytes && in.Limit == 0 {
		in.Limit = 2000
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if in.Offset > 0 {
		start = in.Offset - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if in.Limit > 0 && start+in.Limit < end {
		end = start + in.Limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, lines[i])
	}

	return &Result{
		Title:  fmt.Sprintf("Read %s", in.Path),
		Output: truncateOutput(sb.String(), maxReadBytes),
		Metadata: map[string]any{
			"path":  in.Path,
			"lines": end - start,
		},
	}, nil
}
