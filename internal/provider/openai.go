package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptline-ai/promptline/internal/memory"
)

const defaultRequestTimeout = 120 * time.Second

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
// Most hosted and local providers speak this protocol.
type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// OpenAIProvider talks to a chat completions endpoint and parses the
// reply text into proposals.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI creates a provider for an OpenAI-compatible endpoint.
func NewOpenAI(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("openai(%s)", p.cfg.Model)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) Propose(ctx context.Context, task string, steps []memory.Step) (*Proposal, error) {
	body, err := json.Marshal(chatRequest{
		Model:     p.cfg.Model,
		Messages:  p.renderMessages(task, steps),
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("malformed provider response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("provider error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	return Parse(parsed.Choices[0].Message.Content), nil
}

// renderMessages flattens the step history into the chat transcript the
// model sees: thoughts and actions as assistant turns, observations as
// user turns.
func (p *OpenAIProvider) renderMessages(task string, steps []memory.Step) []chatMessage {
	msgs := make([]chatMessage, 0, len(steps)+2)
	if p.cfg.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.cfg.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: task})

	for _, step := range steps {
		switch step.Kind {
		case memory.Thought:
			msgs = append(msgs, chatMessage{Role: "assistant", Content: step.Text})
		case memory.Action:
			msgs = append(msgs, chatMessage{Role: "assistant", Content: renderAction(step)})
		case memory.Observation:
			msgs = append(msgs, chatMessage{Role: "user", Content: renderObservation(step)})
		}
	}
	return msgs
}

func renderAction(step memory.Step) string {
	if step.Call == nil {
		return step.Text
	}
	return fmt.Sprintf(`{"tool": %q, "args": %s}`, step.Call.Tool, step.Call.Arguments.Canonical())
}

func renderObservation(step memory.Step) string {
	if step.Result == nil {
		return "Observation: " + step.Text
	}
	if step.Result.Success {
		return "Observation: " + step.Result.Payload
	}
	return fmt.Sprintf("Observation (error, %s): %s", step.Result.Kind, step.Result.Message)
}
