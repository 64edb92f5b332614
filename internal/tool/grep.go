package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const grepDescription = `Searches file contents with a regular expression.

Usage:
- pattern is a Go regular expression
- include filters files by glob (e.g. "*.go")
- Matches are reported as path:line:text`

const maxGrepMatches = 200

// GrepTool searches file contents.
type GrepTool struct {
	workDir string
}

// GrepInput is the search_content argument shape.
type GrepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Include string `json:"include,omitempty"`
}

// NewGrepTool creates the search_content tool.
func NewGrepTool(workDir string) *GrepTool {
	return &GrepTool{workDir: workDir}
}

func (t *GrepTool) Name() string        { return "search_content" }
func (t *GrepTool) Description() string { return grepDescription }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Regular expression to search for"},
			"path": {"type": "string", "description": "Search root (defaults to the working directory)"},
			"include": {"type": "string", "description": "Glob filter on file names, e.g. *.go"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

func (t *GrepTool) Key(args *value.Map) permission.Key {
	var in GrepInput
	_ = args.DecodeInto(&in)
	return permission.Key{Tool: t.Name(), Scope: normalizeScope(in.Path)}
}

func (t *GrepTool) Timeout() time.Duration { return 30 * time.Second }

func (t *GrepTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in GrepInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", in.Pattern, err)
	}

	root := t.workDir
	if in.Path != "" {
		root = resolvePath(t.workDir, in.Path)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if in.Include != "" {
			if ok, _ := doublestar.Match(in.Include, d.Name()); !ok {
				return nil
			}
		}
		if len(matches) >= maxGrepMatches {
			return filepath.SkipAll
		}

		rel, _ := filepath.Rel(root, path)
		found, err := grepFile(path, rel, re, maxGrepMatches-len(matches))
		if err != nil {
			return nil
		}
		matches = append(matches, found...)
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	output := strings.Join(matches, "\n")
	if len(matches) == 0 {
		output = "No matches."
	} else if len(matches) >= maxGrepMatches {
		output += "\n\n(matches truncated)"
	}

	return &Result{
		Title:  fmt.Sprintf("Searched for %s", in.Pattern),
		Output: output,
		Metadata: map[string]any{
			"pattern": in.Pattern,
			"count":   len(matches),
		},
	}, nil
}

func grepFile(path, rel string, re *regexp.Regexp, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.ContainsRune(line, 0) {
			return out, nil // binary file
		}
		if re.MatchString(line) {
			out = append(out, fmt.Sprintf("%s:%d:%s", rel, lineNo, line))
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, scanner.Err()
}
