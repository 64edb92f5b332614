package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const gitStatusDescription = `Reports the git status of the working directory.

Usage:
- No arguments
- Shows the current branch and changed files in porcelain-like form`

// GitStatusTool reads repository state without shelling out.
type GitStatusTool struct {
	workDir string
}

// NewGitStatusTool creates the git_status tool.
func NewGitStatusTool(workDir string) *GitStatusTool {
	return &GitStatusTool{workDir: workDir}
}

func (t *GitStatusTool) Name() string        { return "git_status" }
func (t *GitStatusTool) Description() string { return gitStatusDescription }

func (t *GitStatusTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GitStatusTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

func (t *GitStatusTool) Key(args *value.Map) permission.Key {
	return permission.Key{Tool: t.Name()}
}

func (t *GitStatusTool) Timeout() time.Duration { return 15 * time.Second }

func (t *GitStatusTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	repo, err := git.PlainOpenWithOptions(t.workDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	var sb strings.Builder

	head, err := repo.Head()
	if err == nil {
		if head.Name().IsBranch() {
			fmt.Fprintf(&sb, "On branch %s\n", head.Name().Short())
		} else {
			fmt.Fprintf(&sb, "HEAD detached at %s\n", head.Hash().String()[:8])
		}
	} else {
		sb.WriteString("No commits yet\n")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	if status.IsClean() {
		sb.WriteString("Working tree clean\n")
	} else {
		paths := make([]string, 0, len(status))
		for path := range status {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fs := status[path]
			fmt.Fprintf(&sb, "%c%c %s\n", fs.Staging, fs.Worktree, path)
		}
	}

	return &Result{
		Title:  "git status",
		Output: sb.String(),
		Metadata: map[string]any{
			"clean": status.IsClean(),
		},
	}, nil
}

const gitDiffDescription = `Shows uncommitted changes as a unified-style diff.

Usage:
- path optionally restricts the diff to one file
- Untracked files are listed but not diffed`

// GitDiffTool diffs the worktree against HEAD.
type GitDiffTool struct {
	workDir string
}

// GitDiffInput is the git_diff argument shape.
type GitDiffInput struct {
	Path string `json:"path,omitempty"`
}

// NewGitDiffTool creates the git_diff tool.
func NewGitDiffTool(workDir string) *GitDiffTool {
	return &GitDiffTool{workDir: workDir}
}

func (t *GitDiffTool) Name() string        { return "git_diff" }
func (t *GitDiffTool) Description() string { return gitDiffDescription }

func (t *GitDiffTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Restrict the diff to this file"}
		}
	}`)
}

func (t *GitDiffTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

func (t *GitDiffTool) Key(args *value.Map) permission.Key {
	return permission.Key{Tool: t.Name()}
}

func (t *GitDiffTool) Timeout() time.Duration { return 30 * time.Second }

func (t *GitDiffTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in GitDiffInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(t.workDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	tree := headTree(repo)
	root := wt.Filesystem.Root()

	paths := make([]string, 0, len(status))
	for path := range status {
		if in.Path != "" && path != filepath.Clean(in.Path) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var sb strings.Builder
	changed := 0
	for _, path := range paths {
		fs := status[path]
		if fs.Staging == git.Untracked && fs.Worktree == git.Untracked {
			fmt.Fprintf(&sb, "untracked: %s\n", path)
			continue
		}

		var before string
		if tree != nil {
			if f, err := tree.File(path); err == nil {
				before, _ = f.Contents()
			}
		}
		var after string
		if data, err := os.ReadFile(filepath.Join(root, path)); err == nil {
			after = string(data)
		}
		if before == after {
			continue
		}

		changed++
		fmt.Fprintf(&sb, "--- %s\n", path)
		sb.WriteString(renderDiff(before, after))
		sb.WriteByte('\n')
	}

	if sb.Len() == 0 {
		sb.WriteString("No changes.\n")
	}

	return &Result{
		Title:  "git diff",
		Output: truncateOutput(sb.String(), maxReadBytes),
		Metadata: map[string]any{
			"files": changed,
		},
	}, nil
}

func headTree(repo *git.Repository) *object.Tree {
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil
	}
	return tree
}

const gitCommitDescription = `Creates a git commit from the current changes.

Usage:
- message is required
- add_all stages every change (including deletions) before committing
- Author comes from the repository's git config`

// GitCommitTool stages and commits changes.
type GitCommitTool struct {
	workDir string
}

// GitCommitInput is the git_commit argument shape.
type GitCommitInput struct {
	Message string `json:"message"`
	AddAll  bool   `json:"add_all,omitempty"`
}

// NewGitCommitTool creates the git_commit tool.
func NewGitCommitTool(workDir string) *GitCommitTool {
	return &GitCommitTool{workDir: workDir}
}

func (t *GitCommitTool) Name() string        { return "git_commit" }
func (t *GitCommitTool) Description() string { return gitCommitDescription }

func (t *GitCommitTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {"type": "string", "description": "Commit message"},
			"add_all": {"type": "boolean", "description": "Stage all changes before committing"}
		},
		"required": ["message"]
	}`)
}

// Classify grades commits Sensitive: they mutate repository state but
// stay recoverable through the reflog.
func (t *GitCommitTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Sensitive
}

// Key shares the shell tool's scope family, so a "git commit *" grant
// covers commits made either way.
func (t *GitCommitTool) Key(args *value.Map) permission.Key {
	return permission.Key{Tool: t.Name(), Scope: "git commit *"}
}

func (t *GitCommitTool) Timeout() time.Duration { return 30 * time.Second }

func (t *GitCommitTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in GitCommitInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("commit message is empty")
	}

	repo, err := git.PlainOpenWithOptions(t.workDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	if in.AddAll {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return nil, fmt.Errorf("stage changes: %w", err)
		}
	}

	hash, err := wt.Commit(in.Message, &git.CommitOptions{})
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	subject := in.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}

	return &Result{
		Title:  fmt.Sprintf("Committed %s", hash.String()[:8]),
		Output: fmt.Sprintf("[%s] %s", hash.String()[:8], subject),
		Metadata: map[string]any{
			"hash": hash.String(),
		},
	}, nil
}
