package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/promptline-ai/promptline/internal/config"
)

const configTemplate = `{
	// Model sent to the provider.
	"model": "gpt-4o",

	// Uncomment to point at a different OpenAI-compatible endpoint.
	// "baseUrl": "http://localhost:11434/v1",

	// Prefer {env:VAR} over a literal key.
	"apiKey": "{env:OPENAI_API_KEY}",

	"maxSteps": 50,

	// Disable individual tools:
	// "tools": { "web_fetch": false }

	"logLevel": "info"
}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := getWorkDir()
		if err != nil {
			return err
		}

		path := filepath.Join(dir, ".promptline", "promptline.jsonc")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
			return err
		}

		if err := config.GetPaths().EnsurePaths(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "set OPENAI_API_KEY (or edit the config) and run 'promptline doctor'")
		return nil
	},
}
