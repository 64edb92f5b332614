package provider

import (
	"fmt"
	"strings"
)

// ToolInfo is the tool surface advertised to the model.
type ToolInfo struct {
	Name        string
	Description string
}

const basePrompt = `You are PromptLine, an AI assistant that helps with coding and system tasks.`

// Environment is what the model is told about where it is running.
type Environment struct {
	WorkDir     string
	ProjectType string
	GitBranch   string
}

// BuildSystemPrompt assembles the system prompt: identity, environment,
// the tool catalog and the output protocol the parser expects.
func BuildSystemPrompt(env Environment, tools []ToolInfo) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Current working directory: %s\n", env.WorkDir)
	if env.ProjectType != "" {
		fmt.Fprintf(&sb, "Current project type: %s\n", env.ProjectType)
	}
	if env.GitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", env.GitBranch)
	}
	sb.WriteString("\n")

	sb.WriteString("You can use the following tools:\n")
	for _, t := range tools {
		summary := t.Description
		if i := strings.IndexByte(summary, '\n'); i >= 0 {
			summary = summary[:i]
		}
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, summary)
	}

	sb.WriteString(`
To use a tool, output JSON in this format:
{"tool": "tool_name", "args": {"arg": "value"}}

Propose at most one tool call per response.

When you've completed the task, respond with: FINISH

Always explain your reasoning before taking an action.`)
	return sb.String()
}
