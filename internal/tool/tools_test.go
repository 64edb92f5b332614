package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

func mustArgs(t *testing.T, raw string) *value.Map {
	t.Helper()
	m, err := value.DecodeObject(json.RawMessage(raw))
	require.NoError(t, err)
	return m
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	tool, ok := r.Lookup("read_file")
	require.True(t, ok)
	assert.Equal(t, "read_file", tool.Name())

	_, ok = r.Lookup("nonexistent")
	assert.False(t, ok)

	assert.Contains(t, r.Names(), "shell_execute")
	assert.Contains(t, r.Names(), "git_status")
	assert.Contains(t, r.Names(), "git_diff")
	assert.Contains(t, r.Names(), "git_commit")
}

func TestRegistryPrepareValidatesSchema(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	_, err := r.Prepare("read_file", mustArgs(t, `{"path":"main.go"}`))
	require.NoError(t, err)

	// Missing required field.
	_, err = r.Prepare("read_file", mustArgs(t, `{"offset":3}`))
	require.Error(t, err)
	var ve *value.ValidationError
	assert.ErrorAs(t, err, &ve)

	// Unknown tool.
	_, err = r.Prepare("format_disk", mustArgs(t, `{}`))
	assert.Error(t, err)
}

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	w := NewWriteTool(dir)
	_, err := w.Execute(ctx, mustArgs(t, `{"path":"notes.txt","content":"hello\nworld\n"}`), &Context{})
	require.NoError(t, err)

	r := NewReadTool(dir)
	res, err := r.Execute(ctx, mustArgs(t, `{"path":"notes.txt"}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, "world")
}

func TestReadOffsetLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("a\nb\nc\nd\n"), 0o644))

	r := NewReadTool(dir)
	res, err := r.Execute(context.Background(), mustArgs(t, `{"path":"f.txt","offset":2,"limit":2}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "b")
	assert.Contains(t, res.Output, "c")
	assert.NotContains(t, res.Output, "d")
}

func TestEditTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644))

	e := NewEditTool(dir)
	res, err := e.Execute(context.Background(),
		mustArgs(t, `{"path":"main.go","old":"func main() {}","new":"func main() { run() }"}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "+func main() { run() }")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run()")
}

func TestEditToolOldNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha beta gamma\n"), 0o644))

	e := NewEditTool(dir)
	_, err := e.Execute(context.Background(),
		mustArgs(t, `{"path":"a.txt","old":"alpha beta gama","new":"x"}`), &Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closest line")
}

func TestEditToolAmbiguousOld(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("dup\ndup\n"), 0o644))

	e := NewEditTool(dir)
	_, err := e.Execute(context.Background(),
		mustArgs(t, `{"path":"a.txt","old":"dup","new":"x"}`), &Context{})
	assert.Error(t, err)

	// replace_all resolves the ambiguity.
	_, err = e.Execute(context.Background(),
		mustArgs(t, `{"path":"a.txt","old":"dup","new":"x","replace_all":true}`), &Context{})
	assert.NoError(t, err)
}

func TestListTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	l := NewListTool(dir)
	res, err := l.Execute(context.Background(), mustArgs(t, `{}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "b.txt")
	assert.Contains(t, res.Output, "sub/")
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0o644))

	g := NewGlobTool(dir)
	res, err := g.Execute(context.Background(), mustArgs(t, `{"pattern":"**/*.go"}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "src/main.go")
	assert.NotContains(t, res.Output, "readme.md")
}

func TestGrepTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.go"), []byte("package x\n// TODO fix\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "y.txt"), []byte("nothing here\n"), 0o644))

	g := NewGrepTool(dir)
	res, err := g.Execute(context.Background(), mustArgs(t, `{"pattern":"TODO","include":"*.go"}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "x.go:2:")
	assert.NotContains(t, res.Output, "y.txt")
}

func TestShellToolExecute(t *testing.T) {
	s := NewShellTool(t.TempDir())
	res, err := s.Execute(context.Background(), mustArgs(t, `{"command":"echo hello"}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "hello")
}

func TestShellToolNonzeroExit(t *testing.T) {
	s := NewShellTool(t.TempDir())
	_, err := s.Execute(context.Background(), mustArgs(t, `{"command":"exit 3"}`), &Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 3")
}

func TestShellToolClassifyAndKey(t *testing.T) {
	s := NewShellTool(t.TempDir())

	assert.Equal(t, permission.Safe, s.Classify(mustArgs(t, `{"command":"ls -la"}`)))
	assert.Equal(t, permission.Sensitive, s.Classify(mustArgs(t, `{"command":"git commit -m x"}`)))
	assert.Equal(t, permission.Destructive, s.Classify(mustArgs(t, `{"command":"rm -rf /"}`)))

	key := s.Key(mustArgs(t, `{"command":"git commit -m x"}`))
	assert.Equal(t, permission.Key{Tool: "shell_execute", Scope: "git commit *"}, key)
}

func TestWriteToolClassify(t *testing.T) {
	dir := t.TempDir()
	w := NewWriteTool(dir)

	assert.Equal(t, permission.Sensitive, w.Classify(mustArgs(t, `{"path":"inside.txt","content":""}`)))
	assert.Equal(t, permission.Destructive, w.Classify(mustArgs(t, `{"path":"/etc/passwd","content":""}`)))
	assert.Equal(t, permission.Destructive, w.Classify(mustArgs(t, `{"path":"../outside.txt","content":""}`)))
}

func TestKeyDerivationDeterministic(t *testing.T) {
	r := NewReadTool(".")

	a := r.Key(mustArgs(t, `{"path":"./src/../src/main.go"}`))
	b := r.Key(mustArgs(t, `{"path":"src/main.go"}`))
	assert.Equal(t, a, b)
	assert.Equal(t, permission.Key{Tool: "read_file", Scope: "src/main.go"}, a)
}

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "tester"
	cfg.User.Email = "tester@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{})
	require.NoError(t, err)

	return dir, repo
}

func TestGitDiffTool(t *testing.T) {
	dir, _ := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("fresh\n"), 0o644))

	d := NewGitDiffTool(dir)
	res, err := d.Execute(context.Background(), mustArgs(t, `{}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "--- a.txt")
	assert.Contains(t, res.Output, "+two")
	assert.Contains(t, res.Output, "untracked: new.txt")

	assert.Equal(t, permission.Safe, d.Classify(mustArgs(t, `{}`)))
}

func TestGitDiffToolCleanTree(t *testing.T) {
	dir, _ := initRepo(t)

	d := NewGitDiffTool(dir)
	res, err := d.Execute(context.Background(), mustArgs(t, `{}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "No changes.")
}

func TestGitCommitTool(t *testing.T) {
	dir, repo := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o644))

	c := NewGitCommitTool(dir)
	res, err := c.Execute(context.Background(),
		mustArgs(t, `{"message":"add second line","add_all":true}`), &Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "add second line")

	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "add second line", commit.Message)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	status, err := wt.Status()
	require.NoError(t, err)
	assert.True(t, status.IsClean())
}

func TestGitCommitToolRejectsEmptyMessage(t *testing.T) {
	dir, _ := initRepo(t)

	c := NewGitCommitTool(dir)
	_, err := c.Execute(context.Background(), mustArgs(t, `{"message":"  "}`), &Context{})
	assert.Error(t, err)
}

func TestGitCommitToolClassifyAndKey(t *testing.T) {
	c := NewGitCommitTool(t.TempDir())
	assert.Equal(t, permission.Sensitive, c.Classify(mustArgs(t, `{"message":"x"}`)))
	assert.Equal(t, permission.Key{Tool: "git_commit", Scope: "git commit *"}, c.Key(mustArgs(t, `{"message":"x"}`)))
}

func TestWebFetchKeyScopesToHost(t *testing.T) {
	w := NewWebFetchTool()
	key := w.Key(mustArgs(t, `{"url":"https://example.com/docs/page?q=1"}`))
	assert.Equal(t, permission.Key{Tool: "web_fetch", Scope: "example.com"}, key)
}
