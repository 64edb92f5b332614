package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Config is the resolved promptline configuration.
type Config struct {
	// Model is the model identifier sent to the provider.
	Model string `json:"model,omitempty"`
	// BaseURL points at an OpenAI-compatible endpoint.
	BaseURL string `json:"baseUrl,omitempty"`
	// APIKey authenticates against the provider. Prefer {env:VAR}
	// interpolation over a literal key in the file.
	APIKey string `json:"apiKey,omitempty"`

	// MaxSteps bounds loop iterations per run.
	MaxSteps int `json:"maxSteps,omitempty"`
	// MemoryBound bounds the step log; zero means twice MaxSteps.
	MemoryBound int `json:"memoryBound,omitempty"`

	// AutoApprove skips prompts for Safe and Sensitive calls.
	// Destructive calls always prompt.
	AutoApprove bool `json:"autoApprove,omitempty"`
	// PermissionStore overrides the default store location.
	PermissionStore string `json:"permissionStore,omitempty"`

	// Tools disables individual tools when set to false.
	Tools map[string]bool `json:"tools,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty"`
}

// Defaults applied before any file or environment source.
const (
	DefaultModel    = "gpt-4o"
	DefaultMaxSteps = 50
	DefaultLogLevel = "info"
)

// Load resolves configuration from, in priority order: defaults, the
// global config file, the project config file, a PROMPTLINE_CONFIG
// override file, then environment variables. A .env file in the project
// directory is loaded first so file interpolation and env overrides see
// it.
func Load(directory string) (*Config, error) {
	if directory != "" {
		// Missing .env is the normal case.
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	cfg := &Config{
		Model:    DefaultModel,
		MaxSteps: DefaultMaxSteps,
		LogLevel: DefaultLogLevel,
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || loaded[abs] {
			return
		}
		if loadConfigFile(path, cfg) == nil {
			loaded[abs] = true
		}
	}

	global := GetPaths().Config
	loadOnce(filepath.Join(global, "promptline.json"))
	loadOnce(filepath.Join(global, "promptline.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, "promptline.json"))
		loadOnce(filepath.Join(directory, "promptline.jsonc"))
		loadOnce(filepath.Join(directory, ".promptline", "promptline.json"))
		loadOnce(filepath.Join(directory, ".promptline", "promptline.jsonc"))
	}

	if path := os.Getenv("PROMPTLINE_CONFIG"); path != "" {
		loadOnce(path)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadConfigFile merges a single file into cfg. JSONC comments are
// stripped and {env:VAR} / {file:path} placeholders resolved before
// parsing.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, filepath.Dir(path))

	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	merge(cfg, &file)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate resolves {env:VAR_NAME} and {file:path} placeholders.
// File paths are relative to the config file's directory; a missing
// file leaves the placeholder in place.
func interpolate(data []byte, baseDir string) []byte {
	data = envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})

	return filePattern.ReplaceAllFunc(data, func(match []byte) []byte {
		path := string(filePattern.FindSubmatch(match)[1])
		if strings.HasPrefix(path, "~/") {
			path = filepath.Join(os.Getenv("HOME"), path[2:])
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return match
		}
		return []byte(escapeForJSON(strings.TrimSpace(string(content))))
	})
}

var jsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeForJSON(s string) string {
	return jsonEscaper.Replace(s)
}

func merge(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.BaseURL != "" {
		target.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		target.APIKey = source.APIKey
	}
	if source.MaxSteps > 0 {
		target.MaxSteps = source.MaxSteps
	}
	if source.MemoryBound > 0 {
		target.MemoryBound = source.MemoryBound
	}
	if source.AutoApprove {
		target.AutoApprove = true
	}
	if source.PermissionStore != "" {
		target.PermissionStore = source.PermissionStore
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}
}

// applyEnvOverrides applies environment variables, the highest-priority
// source.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}
	if model := os.Getenv("PROMPTLINE_MODEL"); model != "" {
		cfg.Model = model
	}
	if url := os.Getenv("PROMPTLINE_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
	if level := os.Getenv("PROMPTLINE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if steps := os.Getenv("PROMPTLINE_MAX_STEPS"); steps != "" {
		if n, err := strconv.Atoi(steps); err == nil && n > 0 {
			cfg.MaxSteps = n
		}
	}
}

// StorePath returns the permission store path, honoring the override.
func (c *Config) StorePath() string {
	if c.PermissionStore != "" {
		return c.PermissionStore
	}
	return GetPaths().PermissionStorePath()
}

// ToolEnabled reports whether a tool is enabled; tools default to on.
func (c *Config) ToolEnabled(name string) bool {
	if c.Tools == nil {
		return true
	}
	enabled, ok := c.Tools[name]
	return !ok || enabled
}

// Save writes the configuration to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
