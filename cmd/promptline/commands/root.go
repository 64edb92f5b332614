// Package commands provides the CLI commands for promptline.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptline-ai/promptline/internal/logging"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel string
	workDir  string
)

// exitCode carries the process exit code chosen by a command.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "promptline",
	Short: "PromptLine - an agentic CLI assistant",
	Long: `PromptLine is an AI assistant for coding and system tasks. It plans
with a language model, asks permission before acting, and remembers the
answers you choose to keep.

Run 'promptline run "task"' to execute a task, or 'promptline doctor'
to check your setup.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: true,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "directory", "C", "", "Working directory")

	rootCmd.SetVersionTemplate(fmt.Sprintf("promptline %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(permissionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() (int, error) {
	if err := rootCmd.Execute(); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

// getWorkDir returns the working directory from the flag or the process.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}
