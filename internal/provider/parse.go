package provider

import (
	"encoding/json"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/promptline-ai/promptline/internal/memory"
	"github.com/promptline-ai/promptline/internal/value"
)

const finishMarker = "FINISH"

// rawToolCall matches the JSON shape models are instructed to emit:
// {"tool": "name", "args": {...}}.
type rawToolCall struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Parse turns raw model text into a Proposal. A response may contain a
// tool call as an embedded JSON object, a completion marker, or neither;
// the last case is returned as a bare thought and left to the loop's
// stall detection.
func Parse(content string) *Proposal {
	if call, before := extractToolCall(content); call != nil {
		return &Proposal{
			Thought: strings.TrimSpace(before),
			Call:    call,
		}
	}
	if isComplete(content) {
		return &Proposal{
			Done:    true,
			Summary: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), finishMarker)),
		}
	}
	return &Proposal{Thought: strings.TrimSpace(content)}
}

// extractToolCall scans the text for an embedded {"tool": ..., "args": ...}
// object. Models wrap the JSON in prose, so the widest brace span is
// tried first and the scan narrows from each opening brace after that.
func extractToolCall(content string) (*memory.ToolCall, string) {
	end := strings.LastIndexByte(content, '}')
	if end < 0 {
		return nil, ""
	}
	for start := strings.IndexByte(content, '{'); start >= 0 && start < end; start = nextBrace(content, start) {
		if call := decodeToolCall(content[start : end+1]); call != nil {
			return call, content[:start]
		}
	}
	return nil, ""
}

func nextBrace(content string, after int) int {
	i := strings.IndexByte(content[after+1:], '{')
	if i < 0 {
		return -1
	}
	return after + 1 + i
}

func decodeToolCall(candidate string) *memory.ToolCall {
	var raw rawToolCall
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil
	}
	if raw.Tool == "" || len(raw.Args) == 0 {
		return nil
	}
	args, err := value.DecodeObject(raw.Args)
	if err != nil {
		return nil
	}
	return &memory.ToolCall{
		ID:        ulid.Make().String(),
		Tool:      raw.Tool,
		Arguments: args,
	}
}

func isComplete(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasSuffix(trimmed, finishMarker) || strings.Contains(trimmed, "task is complete")
}
