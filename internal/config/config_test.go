package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/goserial/internal/classify"
	apperrors "github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/registry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goserial.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// isolate runs the test in an empty directory with no GOSERIAL_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"FORMAT", "KEY_CASE", "ALLOW_TRAILING", "NEWLINE", "DEBUG"} {
		name := "GOSERIAL_" + key
		if old, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { _ = os.Setenv(name, old) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(name) })
		}
		_ = os.Unsetenv(name)
	}
	return dir
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "none", cfg.Keys.Case)
	assert.False(t, cfg.Parse.AllowTrailing)
	assert.True(t, cfg.Output.Newline)
	assert.False(t, cfg.Dev.Debug)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, registry.JSON, cfg.WireFormat())
	assert.Equal(t, classify.KeyCaseNone, cfg.KeyCase())
}

func TestConfig_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
format: "text"
keys:
  case: "snake"
parse:
  allow_trailing: true
output:
  newline: false
dev:
  debug: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, registry.Text, cfg.WireFormat())
	assert.Equal(t, classify.KeyCaseSnake, cfg.KeyCase())
	assert.True(t, cfg.Parse.AllowTrailing)
	assert.False(t, cfg.Output.Newline)
	assert.True(t, cfg.Dev.Debug)
}

func TestConfig_LoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `format: text`))
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Format)
	assert.True(t, cfg.Output.Newline)
	assert.Equal(t, classify.KeyCaseNone, cfg.KeyCase())
}

func TestConfig_LoadNonExistentFile(t *testing.T) {
	_, err := LoadConfig("/non/existent/config.yml")
	require.Error(t, err)
	assert.ErrorIs(t, err, &apperrors.AppError{Type: apperrors.ErrorTypeConfig})
	assert.Contains(t, err.Error(), "no such file or directory")
}

func TestConfig_LoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, `
format: "json"
keys: [unclosed array
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_LoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"unknown format", `format: yaml`, apperrors.ErrUnsupportedFormat},
		{"unknown key case", "keys:\n  case: screaming", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, &apperrors.AppError{Type: apperrors.ErrorTypeConfig})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_FindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	nestedDir := filepath.Join(tmpDir, "project", "subdir")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))

	configPath := filepath.Join(tmpDir, "project", ".goserial.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(`format: "text"`), 0o644))

	t.Chdir(nestedDir)

	// Should find it in the parent directory
	foundPath := FindConfigFile()
	require.NotEmpty(t, foundPath, "Should find config file")

	foundContent, err := os.ReadFile(foundPath)
	require.NoError(t, err)
	assert.Contains(t, string(foundContent), `format: "text"`)
}

func TestConfig_FindConfigFileNotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Empty(t, FindConfigFile())
}

func TestConfig_ApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GOSERIAL_FORMAT", "text")
	t.Setenv("GOSERIAL_KEY_CASE", "kebab")
	t.Setenv("GOSERIAL_ALLOW_TRAILING", "yes")
	t.Setenv("GOSERIAL_NEWLINE", "false")

	cfg := NewConfig()
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, registry.Text, cfg.WireFormat())
	assert.Equal(t, classify.KeyCaseKebab, cfg.KeyCase())
	assert.True(t, cfg.Parse.AllowTrailing)
	assert.False(t, cfg.Output.Newline)
	assert.False(t, cfg.Dev.Debug)
}

func TestConfig_ApplyEnvInvalid(t *testing.T) {
	isolate(t)

	t.Setenv("GOSERIAL_DEBUG", "maybe")
	err := ApplyEnv(NewConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOSERIAL_DEBUG")

	t.Setenv("GOSERIAL_DEBUG", "")
	t.Setenv("GOSERIAL_FORMAT", "xml")
	err = ApplyEnv(NewConfig())
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestConfig_ApplyEnvDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOSERIAL_FORMAT=text\nGOSERIAL_DEBUG=true\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("GOSERIAL_DEBUG=false\nGOSERIAL_KEY_CASE=snake\n"), 0o644))

	cfg := NewConfig()
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, "text", cfg.Format)
	assert.True(t, cfg.Dev.Debug, ".env.local must not override a variable set by .env")
	assert.Equal(t, classify.KeyCaseSnake, cfg.KeyCase())
}

func TestConfig_MergeWithCLI(t *testing.T) {
	baseConfig := &Config{
		Format: "text",
		Keys:   KeysConfig{Case: "snake"},
		Output: OutputConfig{Newline: true},
	}

	cliOverrides := &Config{
		Format: "json", // Override format
		Keys:   KeysConfig{Case: ""},
		Parse:  ParseConfig{AllowTrailing: true},
	}

	merged := MergeConfigs(baseConfig, cliOverrides)

	assert.Equal(t, "json", merged.Format)     // Overridden by CLI
	assert.Equal(t, "snake", merged.Keys.Case) // Kept from base (CLI was empty)
	assert.True(t, merged.Parse.AllowTrailing) // Overridden by CLI
	assert.True(t, merged.Output.Newline)      // Kept from base
	assert.False(t, merged.Dev.Debug)
	assert.Equal(t, "text", baseConfig.Format, "base must not be modified")
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
format: "text"
keys:
  case: "camel"
output:
  newline: false
`)
	t.Setenv("GOSERIAL_KEY_CASE", "snake")

	cfg, err := LoadConfigWithCLI(path, "json", false, true)
	require.NoError(t, err)

	// CLI > environment > config file > defaults
	assert.Equal(t, registry.JSON, cfg.WireFormat())      // From CLI
	assert.Equal(t, classify.KeyCaseSnake, cfg.KeyCase()) // From environment
	assert.False(t, cfg.Output.Newline)                   // From config file
	assert.True(t, cfg.Dev.Debug)                         // From CLI
	assert.False(t, cfg.Parse.AllowTrailing)              // Default
}

func TestLoadConfigWithPrecedence_NoOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `format: "text"`)

	cfg, err := LoadConfigWithCLI(path, "", false, false)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "none", cfg.Keys.Case) // Default value
}

func TestLoadConfigWithCLI_DiscoversFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".goserial.yaml"), []byte("parse:\n  allow_trailing: true\n"), 0o644))

	cfg, err := LoadConfigWithCLI("", "", false, false)
	require.NoError(t, err)
	assert.True(t, cfg.Parse.AllowTrailing)
}

func TestLoadConfigWithCLI_InvalidFlag(t *testing.T) {
	isolate(t)

	_, err := LoadConfigWithCLI("", "yaml", false, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}
