package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptline-ai/promptline/internal/config"
	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/tool"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the promptline setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ok := true

		check := func(name string, pass bool, detail string) {
			mark := "ok"
			if !pass {
				mark = "FAIL"
				ok = false
			}
			fmt.Fprintf(out, "%-24s %-4s %s\n", name, mark, detail)
		}

		dir, err := getWorkDir()
		check("working directory", err == nil, dir)
		if err != nil {
			return err
		}

		cfg, err := config.Load(dir)
		check("config", err == nil, describeConfigSource(dir))
		if err != nil {
			return err
		}

		check("model", cfg.Model != "", cfg.Model)
		check("api key", cfg.APIKey != "", maskKey(cfg.APIKey))

		if err := config.GetPaths().EnsurePaths(); err != nil {
			check("data directories", false, err.Error())
		} else {
			check("data directories", true, config.GetPaths().Data)
		}

		store := permission.OpenStore(cfg.StorePath())
		check("permission store", true,
			fmt.Sprintf("%s (%d decisions)", store.Path(), len(store.Records())))
		store.Close()

		reg := tool.DefaultRegistry(dir)
		enabled := 0
		for _, name := range reg.Names() {
			if cfg.ToolEnabled(name) {
				enabled++
			}
		}
		check("tools", enabled > 0, fmt.Sprintf("%d of %d enabled", enabled, len(reg.Names())))

		if !ok {
			exitCode = exitError
			return fmt.Errorf("setup problems found")
		}
		fmt.Fprintln(out, "\neverything looks good")
		return nil
	},
}

func describeConfigSource(dir string) string {
	candidates := []string{
		config.GlobalConfigPath(),
		dir + "/promptline.json",
		dir + "/promptline.jsonc",
		config.ProjectConfigPath(dir),
	}
	var found []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	if len(found) == 0 {
		return "defaults (no config file)"
	}
	return strings.Join(found, ", ")
}

func maskKey(key string) string {
	if key == "" {
		return "not set (export OPENAI_API_KEY or add apiKey to config)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
