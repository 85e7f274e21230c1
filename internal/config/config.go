package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mcncl/goserial/internal/classify"
	"github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/registry"
)

// EnvPrefix prefixes every environment override, e.g. GOSERIAL_FORMAT.
const EnvPrefix = "goserial"

// Config represents the complete configuration for goserial
type Config struct {
	Format string       `yaml:"format"`
	Keys   KeysConfig   `yaml:"keys"`
	Parse  ParseConfig  `yaml:"parse"`
	Output OutputConfig `yaml:"output"`
	Dev    DevConfig    `yaml:"dev"`
}

// KeysConfig controls how struct fields without a json tag are keyed
type KeysConfig struct {
	Case string `yaml:"case"`
}

// ParseConfig controls input parsing
type ParseConfig struct {
	AllowTrailing bool `yaml:"allow_trailing"`
}

// OutputConfig controls output generation options
type OutputConfig struct {
	Newline bool `yaml:"newline"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug bool `yaml:"debug"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Format: string(registry.JSON),
		Keys: KeysConfig{
			Case: string(classify.KeyCaseNone),
		},
		Parse: ParseConfig{
			AllowTrailing: false,
		},
		Output: OutputConfig{
			Newline: true,
		},
		Dev: DevConfig{
			Debug: false,
		},
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := registry.ParseFormat(c.Format); err != nil {
		return errors.NewConfigError(fmt.Sprintf("invalid format '%s'", c.Format), err)
	}
	if _, err := classify.ParseKeyCase(c.Keys.Case); err != nil {
		return errors.NewConfigError(fmt.Sprintf("invalid key case '%s'", c.Keys.Case), err)
	}
	return nil
}

// WireFormat returns the configured output format. Invalid values fall back
// to JSON; call Validate first to report them.
func (c *Config) WireFormat() registry.Format {
	f, err := registry.ParseFormat(c.Format)
	if err != nil {
		return registry.JSON
	}
	return f
}

// KeyCase returns the configured struct key case.
func (c *Config) KeyCase() classify.KeyCase {
	kc, err := classify.ParseKeyCase(c.Keys.Case)
	if err != nil {
		return classify.KeyCaseNone
	}
	return kc
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("failed to read config file", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".goserial.yml", ".goserial.yaml", "goserial.yml", "goserial.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// ApplyEnv overlays GOSERIAL_* environment variables onto c. Variables from
// .env and .env.local in the working directory are loaded first; neither
// overrides a variable that is already set.
func ApplyEnv(c *Config) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("format"); s != "" {
		c.Format = s
	}
	if s := v.GetString("key-case"); s != "" {
		c.Keys.Case = s
	}

	for key, dst := range map[string]*bool{
		"allow-trailing": &c.Parse.AllowTrailing,
		"newline":        &c.Output.Newline,
		"debug":          &c.Dev.Debug,
	} {
		if v.GetString(key) == "" {
			continue
		}
		b, err := parseBool(v.GetString(key))
		if err != nil {
			return errors.NewConfigError(
				fmt.Sprintf("invalid value for %s_%s", strings.ToUpper(EnvPrefix), strings.ToUpper(strings.ReplaceAll(key, "-", "_"))),
				err,
			)
		}
		*dst = b
	}

	return c.Validate()
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "on":
		return true, nil
	case "0", "f", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("'%s' is not a boolean", s)
}

// MergeConfigs merges CLI overrides into a base config
// Non-empty values from override take precedence over base values
func MergeConfigs(base, override *Config) *Config {
	merged := *base

	if override.Format != "" {
		merged.Format = override.Format
	}
	if override.Keys.Case != "" {
		merged.Keys.Case = override.Keys.Case
	}

	// Boolean flags can only switch a setting on
	if override.Parse.AllowTrailing {
		merged.Parse.AllowTrailing = true
	}
	if override.Dev.Debug {
		merged.Dev.Debug = true
	}

	return &merged
}

// LoadConfigWithCLI loads config with CLI argument precedence:
// CLI > environment > config file > defaults.
// An empty configPath searches for a config file with FindConfigFile.
func LoadConfigWithCLI(configPath, cliFormat string, cliAllowTrailing, cliDebug bool) (*Config, error) {
	cfg := NewConfig()

	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg = MergeConfigs(cfg, &Config{
		Format: cliFormat,
		Parse:  ParseConfig{AllowTrailing: cliAllowTrailing},
		Dev:    DevConfig{Debug: cliDebug},
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
