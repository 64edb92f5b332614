package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptline-ai/promptline/internal/agent"
	"github.com/promptline-ai/promptline/internal/config"
	"github.com/promptline-ai/promptline/internal/event"
	"github.com/promptline-ai/promptline/internal/history"
	"github.com/promptline-ai/promptline/internal/logging"
	"github.com/promptline-ai/promptline/internal/memory"
	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/project"
	"github.com/promptline-ai/promptline/internal/prompt"
	"github.com/promptline-ai/promptline/internal/provider"
	"github.com/promptline-ai/promptline/internal/tool"
)

// Exit codes reported by run.
const (
	exitOK              = 0
	exitError           = 1
	exitStepLimit       = 2
	exitUserInterrupted = 130
)

var (
	runModel       string
	runMaxSteps    int
	runAutoApprove bool
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run a task with the agent",
	Long: `Run a task: the model plans, proposes tool calls, and asks before
anything sensitive happens.

Examples:
  promptline run "Fix the bug in main.go"
  promptline run --model gpt-4o "Explain this code"
  promptline run --auto-approve "Summarize the README"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "Maximum loop steps")
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false,
		"Skip prompts for safe and sensitive calls (destructive calls still ask)")
}

func runTask(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	dir, err := getWorkDir()
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if runModel != "" {
		cfg.Model = runModel
	}
	if runMaxSteps > 0 {
		cfg.MaxSteps = runMaxSteps
	}
	if runAutoApprove {
		cfg.AutoApprove = true
	}
	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Pretty: true})

	store := permission.OpenStore(cfg.StorePath())
	defer store.Close()
	stopWatch, err := permission.WatchStore(store)
	if err == nil {
		defer stopWatch()
	}

	engine := permission.NewEngine(store, permission.WithAutoApprove(cfg.AutoApprove))
	registry := buildRegistry(dir, cfg)

	p := provider.WithRetry(provider.NewOpenAI(provider.OpenAIConfig{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: systemPrompt(dir, registry),
	}))

	var memOpts []agent.LoopOption
	memOpts = append(memOpts, agent.WithMaxSteps(cfg.MaxSteps))
	if cfg.MemoryBound > 0 {
		memOpts = append(memOpts, agent.WithMemory(memory.NewLog(cfg.MemoryBound)))
	}

	loop := agent.New(p, registry, engine,
		prompt.NewTerminal(os.Stdin, os.Stderr), memOpts...)

	unsubscribe := subscribeProgress(cmd.OutOrStdout())
	defer unsubscribe()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	task := strings.Join(args, " ")
	started := time.Now()
	out := loop.Run(ctx, task)

	transcripts := history.NewStore(filepath.Join(paths.Data, "history"))
	if _, err := transcripts.Save(history.FromRun(task, started, loop.Memory().Steps(), out)); err != nil {
		logging.Warn().Err(err).Msg("failed to save run transcript")
	}

	switch out.State {
	case agent.Finished:
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", out.Summary)
		exitCode = exitOK
		return nil
	case agent.Aborted:
		switch out.Reason {
		case agent.AbortUser:
			exitCode = exitUserInterrupted
		case agent.AbortStepLimit:
			exitCode = exitStepLimit
		default:
			exitCode = exitError
		}
		return out.Err
	}
	exitCode = exitError
	return fmt.Errorf("run ended in unexpected state %s", out.State)
}

// buildRegistry registers the built-in tools minus the ones config
// disables.
func buildRegistry(dir string, cfg *config.Config) *tool.Registry {
	full := tool.DefaultRegistry(dir)
	if cfg.Tools == nil {
		return full
	}
	filtered := tool.NewRegistry(dir)
	for _, t := range full.Tools() {
		if cfg.ToolEnabled(t.Name()) {
			filtered.Register(t)
		}
	}
	return filtered
}

func systemPrompt(dir string, registry *tool.Registry) string {
	infos := make([]provider.ToolInfo, 0, len(registry.Names()))
	for _, t := range registry.Tools() {
		infos = append(infos, provider.ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	info := project.Detect(dir)
	return provider.BuildSystemPrompt(provider.Environment{
		WorkDir:     dir,
		ProjectType: info.Type,
		GitBranch:   info.Branch,
	}, infos)
}

// subscribeProgress prints a line per loop event so the user can follow
// along.
func subscribeProgress(w io.Writer) func() {
	return event.SubscribeAll(func(ev event.Event) {
		switch data := ev.Data.(type) {
		case event.ActionProposedData:
			fmt.Fprintf(w, "→ %s\n", data.Tool)
		case event.ObservationRecordedData:
			if !data.Success {
				fmt.Fprintln(w, "  (failed)")
			}
		case event.LoopFinishedData:
			if data.Reason != "finished" {
				fmt.Fprintf(w, "stopped: %s after %d steps\n", data.Reason, data.Steps)
			}
		}
	})
}
