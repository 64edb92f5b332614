package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const editDescription = `Performs an exact string replacement in a file.

Usage:
- old must match the file content exactly, including whitespace
- old must be unique in the file unless replace_all is set
- Returns a diff of the change`

// EditTool performs targeted string replacements.
type EditTool struct {
	workDir string
}

// EditInput is the edit_file argument shape.
type EditInput struct {
	Path       string `json:"path"`
	Old        string `json:"old"`
	New        string `json:"new"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// NewEditTool creates the edit_file tool.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{workDir: workDir}
}

func (t *EditTool) Name() string        { return "edit_file" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path to edit"},
			"old": {"type": "string", "description": "Exact text to replace"},
			"new": {"type": "string", "description": "Replacement text"},
			"replace_all": {"type": "boolean", "description": "Replace every occurrence"}
		},
		"required": ["path", "old", "new"]
	}`)
}

func (t *EditTool) Classify(args *value.Map) permission.DangerClass {
	var in EditInput
	_ = args.DecodeInto(&in)
	if !withinDir(resolvePath(t.workDir, in.Path), t.workDir) {
		return permission.Destructive
	}
	return permission.Sensitive
}

func (t *EditTool) Key(args *value.Map) permission.Key {
	var in EditInput
	_ = args.DecodeInto(&in)
	return permission.Key{Tool: t.Name(), Scope: normalizeScope(in.Path)}
}

func (t *EditTool) Timeout() time.Duration { return 10 * time.Second }

func (t *EditTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in EditInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if in.Old == in.New {
		return nil, fmt.Errorf("old and new are identical")
	}

	path := resolvePath(t.workDir, in.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)

	count := strings.Count(content, in.Old)
	switch {
	case count == 0:
		return nil, fmt.Errorf("old text not found in %s%s", in.Path, closestLineHint(content, in.Old))
	case count > 1 && !in.ReplaceAll:
		return nil, fmt.Errorf("old text occurs %d times in %s; make it unique or set replace_all", count, in.Path)
	}

	var updated string
	if in.ReplaceAll {
		updated = strings.ReplaceAll(content, in.Old, in.New)
	} else {
		updated = strings.Replace(content, in.Old, in.New, 1)
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", in.Path),
		Output: renderDiff(content, updated),
		Metadata: map[string]any{
			"path":         in.Path,
			"replacements": count,
		},
	}, nil
}

// closestLineHint suggests the most similar line when the old text was not
// found, which usually means a whitespace mismatch.
func closestLineHint(content, old string) string {
	needle := strings.TrimSpace(old)
	if needle == "" || strings.ContainsRune(needle, '\n') {
		return ""
	}

	best := ""
	bestDist := -1
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		d := levenshtein.ComputeDistance(needle, trimmed)
		if bestDist == -1 || d < bestDist {
			best, bestDist = trimmed, d
		}
	}

	if best == "" || bestDist > len(needle)/2 {
		return ""
	}
	return fmt.Sprintf(" (closest line: %q)", best)
}

// renderDiff produces a compact line diff of the change.
func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffEqual:
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
