package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptline-ai/promptline/internal/memory"
)

func TestParseToolCall(t *testing.T) {
	p := Parse(`I will list the files. {"tool": "list_files", "args": {"path": "src"}}`)

	require.NotNil(t, p.Call)
	assert.False(t, p.Done)
	assert.Equal(t, "I will list the files.", p.Thought)
	assert.Equal(t, "list_files", p.Call.Tool)
	assert.NotEmpty(t, p.Call.ID)

	path, ok := p.Call.Arguments.Get("path")
	require.True(t, ok)
	assert.Equal(t, "src", path.Text())
}

func TestParseToolCallWithTrailingProse(t *testing.T) {
	p := Parse(`{"tool": "read_file", "args": {"path": "a.txt"}}` + "\nThat should show the contents.")

	// Prose after the JSON breaks the widest brace span; the scan still
	// finds the call.
	require.NotNil(t, p.Call)
	assert.Equal(t, "read_file", p.Call.Tool)
}

func TestParseFinish(t *testing.T) {
	p := Parse("All files updated.\nFINISH")

	assert.True(t, p.Done)
	assert.Nil(t, p.Call)
	assert.Equal(t, "All files updated.", p.Summary)
}

func TestParseBareThought(t *testing.T) {
	p := Parse("Let me think about this differently.")

	assert.False(t, p.Done)
	assert.Nil(t, p.Call)
	assert.Equal(t, "Let me think about this differently.", p.Thought)
}

func TestParseIgnoresNonToolJSON(t *testing.T) {
	p := Parse(`Here is the config: {"port": 8080, "debug": true}`)

	assert.Nil(t, p.Call)
	assert.False(t, p.Done)
}

func TestParseMalformedJSONFallsBackToThought(t *testing.T) {
	p := Parse(`{"tool": "read_file", "args": {broken`)

	assert.Nil(t, p.Call)
	assert.False(t, p.Done)
}

type scriptedProvider struct {
	failures int
	calls    int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Propose(ctx context.Context, task string, steps []memory.Step) (*Proposal, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, fmt.Errorf("transient failure %d", s.calls)
	}
	return &Proposal{Done: true, Summary: "ok"}, nil
}

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	inner := &scriptedProvider{failures: 2}
	p := WithRetry(inner)

	got, err := p.Propose(context.Background(), "task", nil)
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &scriptedProvider{failures: 100}
	p := WithRetry(inner)

	_, err := p.Propose(ctx, "task", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.LessOrEqual(t, inner.calls, 1)
}

func TestOpenAIProviderRoundTrip(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "Done here.\nFINISH"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "sk-test",
		Model:   "gpt-4o",
	})

	got, err := p.Propose(context.Background(), "do the thing", nil)
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Equal(t, "Done here.", got.Summary)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestOpenAIProviderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited", "type": "rate_limit_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, Model: "gpt-4o"})

	_, err := p.Propose(context.Background(), "task", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(Environment{
		WorkDir:     "/work",
		ProjectType: "go",
		GitBranch:   "main",
	}, []ToolInfo{
		{Name: "read_file", Description: "Reads a file.\n\nUsage: ..."},
		{Name: "shell_execute", Description: "Executes a shell command."},
	})

	assert.Contains(t, prompt, "Current working directory: /work")
	assert.Contains(t, prompt, "Current project type: go")
	assert.Contains(t, prompt, "Git branch: main")
	assert.Contains(t, prompt, "- read_file: Reads a file.")
	assert.NotContains(t, prompt, "Usage: ...")
	assert.Contains(t, prompt, `{"tool": "tool_name", "args": {"arg": "value"}}`)
	assert.Contains(t, prompt, "FINISH")
}
