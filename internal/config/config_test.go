package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "xdg-data"))
	t.Setenv("PROMPTLINE_CONFIG", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PROMPTLINE_MODEL", "")
	t.Setenv("PROMPTLINE_BASE_URL", "")
	t.Setenv("PROMPTLINE_LOG_LEVEL", "")
	t.Setenv("PROMPTLINE_MAX_STEPS", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.AutoApprove)
}

func TestLoadProjectFileWithCommentsAndInterpolation(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TEST_PL_KEY", "secret-from-env")

	content := `{
		// project settings
		"model": "local-model",
		"apiKey": "{env:TEST_PL_KEY}",
		"maxSteps": 10,
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promptline.jsonc"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "local-model", cfg.Model)
	assert.Equal(t, "secret-from-env", cfg.APIKey)
	assert.Equal(t, 10, cfg.MaxSteps)
}

func TestProjectOverridesGlobal(t *testing.T) {
	dir := isolate(t)

	globalDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "promptline")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "promptline.json"),
		[]byte(`{"model": "global-model", "logLevel": "debug"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promptline.json"),
		[]byte(`{"model": "project-model"}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "project-model", cfg.Model)
	assert.Equal(t, "debug", cfg.LogLevel, "unset project fields keep global values")
}

func TestEnvOverridesFiles(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promptline.json"),
		[]byte(`{"model": "from-file"}`), 0o644))
	t.Setenv("PROMPTLINE_MODEL", "from-env")
	t.Setenv("PROMPTLINE_MAX_STEPS", "7")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
	assert.Equal(t, 7, cfg.MaxSteps)
}

func TestFileInterpolation(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "key.txt"), []byte("file-key\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promptline.json"),
		[]byte(`{"apiKey": "{file:key.txt}"}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.APIKey)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := isolate(t)
	// godotenv does not override variables already present, even empty ones.
	os.Unsetenv("OPENAI_API_KEY")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("OPENAI_API_KEY=dotenv-key\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.APIKey)
}

func TestToolEnabled(t *testing.T) {
	cfg := &Config{Tools: map[string]bool{"shell_execute": false}}
	assert.False(t, cfg.ToolEnabled("shell_execute"))
	assert.True(t, cfg.ToolEnabled("read_file"))

	empty := &Config{}
	assert.True(t, empty.ToolEnabled("anything"))
}

func TestStorePathOverride(t *testing.T) {
	isolate(t)
	cfg := &Config{PermissionStore: "/tmp/custom.yaml"}
	assert.Equal(t, "/tmp/custom.yaml", cfg.StorePath())

	def := &Config{}
	assert.Contains(t, def.StorePath(), "permissions.yaml")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "promptline.json")

	require.NoError(t, Save(&Config{Model: "saved-model"}, path))

	cfg := &Config{}
	require.NoError(t, loadConfigFile(path, cfg))
	assert.Equal(t, "saved-model", cfg.Model)
}
