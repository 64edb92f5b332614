package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const (
	defaultShellTimeout = 120 * time.Second
	maxShellTimeout     = 10 * time.Minute
	maxShellOutput      = 30000
	sigkillDelay        = 200 * time.Millisecond
)

const shellDescription = `Executes a shell command.

Usage:
- command is required
- Optional timeout in seconds (max 600)
- Output is captured from stdout and stderr
- Commands run in their own process group so cancellation kills children`

// ShellTool executes shell commands.
type ShellTool struct {
	workDir string
	shell   string
}

// ShellInput is the shell_execute argument shape.
type ShellInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// NewShellTool creates the shell_execute tool.
func NewShellTool(workDir string) *ShellTool {
	return &ShellTool{workDir: workDir, shell: detectShell()}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func (t *ShellTool) Name() string        { return "shell_execute" }
func (t *ShellTool) Description() string { return shellDescription }

func (t *ShellTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to execute"},
			"timeout": {"type": "integer", "description": "Optional timeout in seconds (max 600)"}
		},
		"required": ["command"]
	}`)
}

// Classify parses the command line and grades it: read-only commands are
// Safe, anything that mutates is Sensitive, and known-irreversible
// commands or fragments are Destructive.
func (t *ShellTool) Classify(args *value.Map) permission.DangerClass {
	var in ShellInput
	_ = args.DecodeInto(&in)
	return permission.ClassifyShell(in.Command)
}

// Key scopes decisions to a command-prefix pattern such as "git commit *",
// so one grant covers a family of commands without covering everything.
func (t *ShellTool) Key(args *value.Map) permission.Key {
	var in ShellInput
	_ = args.DecodeInto(&in)
	return permission.Key{Tool: t.Name(), Scope: permission.ShellScope(in.Command)}
}

func (t *ShellTool) Timeout() time.Duration { return defaultShellTimeout }

func (t *ShellTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in ShellInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	timeout := defaultShellTimeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Second
		if timeout > maxShellTimeout {
			timeout = maxShellTimeout
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, t.shell, "-c", in.Command)
	cmd.Dir = t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		cmd.Dir = toolCtx.WorkDir
	}
	cmd.Env = os.Environ()

	if runtime.GOOS != "windows" {
		// Own process group: cancellation kills the whole tree, never
		// leaving an authorized-but-unobserved action running.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			if cmd.Process == nil {
				return nil
			}
			pid := cmd.Process.Pid
			syscall.Kill(-pid, syscall.SIGTERM)
			time.AfterFunc(sigkillDelay, func() {
				syscall.Kill(-pid, syscall.SIGKILL)
			})
			return nil
		}
		cmd.WaitDelay = sigkillDelay * 5
	}

	output, err := cmd.CombinedOutput()
	timedOut := cmdCtx.Err() == context.DeadlineExceeded

	result := truncateOutput(string(output), maxShellOutput)
	if timedOut {
		return nil, fmt.Errorf("command timed out after %v", timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			return nil, fmt.Errorf("command exited with status %d: %s", exitCode, result)
		}
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Ran %s", in.Command),
		Output: result,
		Metadata: map[string]any{
			"command": in.Command,
			"exit":    exitCode,
		},
	}, nil
}
