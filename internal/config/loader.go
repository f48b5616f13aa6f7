package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TURNKIT_PROVIDER_MODEL
const EnvPrefix = "TURNKIT"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path means $HOME/.turnkit/turnkit.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// DefaultPath returns $HOME/.turnkit/turnkit.json
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".turnkit", "turnkit.json"), nil
}

// Path returns the config file path
func (l *Loader) Path() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	return DefaultPath()
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// setDefaults registers every key so AutomaticEnv can override keys missing from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("agent.name", cfg.Agent.Name)
	v.SetDefault("agent.description", cfg.Agent.Description)
	v.SetDefault("agent.executor", cfg.Agent.Executor)
	v.SetDefault("agent.max_turns", cfg.Agent.MaxTurns)
	v.SetDefault("agent.tools", cfg.Agent.Tools)

	v.SetDefault("memory.type", cfg.Memory.Type)
	v.SetDefault("memory.window", cfg.Memory.Window)
	v.SetDefault("memory.strategy", cfg.Memory.Strategy)
	v.SetDefault("memory.path", cfg.Memory.Path)

	v.SetDefault("provider.name", cfg.Provider.Name)
	v.SetDefault("provider.model", cfg.Provider.Model)
	v.SetDefault("provider.api_key", cfg.Provider.APIKey)
	v.SetDefault("provider.api_key_env", cfg.Provider.APIKeyEnv)
	v.SetDefault("provider.base_url", cfg.Provider.BaseURL)
	v.SetDefault("provider.script", cfg.Provider.Script)
	v.SetDefault("provider.temperature", cfg.Provider.Temperature)
	v.SetDefault("provider.max_tokens", cfg.Provider.MaxTokens)
	v.SetDefault("provider.max_retries", cfg.Provider.MaxRetries)

	v.SetDefault("events.buffer", cfg.Events.Buffer)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)

	v.SetDefault("session.archive", cfg.Session.Archive)
	v.SetDefault("session.archive_dir", cfg.Session.ArchiveDir)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)

	v.SetDefault("data_dir", cfg.DataDir)
}

// Load reads the config file, applies TURNKIT_* overrides and fills derived paths.
// A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.Path()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType(configType(configPath))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.fillPaths(filepath.Dir(configPath)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillPaths sets data-dir derived defaults and resolves relative file references against baseDir
func (c *Config) fillPaths(baseDir string) error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".turnkit")
	}

	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "turnkit.log")
	}
	if c.Memory.Type == "sqlite" && c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.DataDir, "memory.db")
	}
	if c.Session.ArchiveDir == "" {
		c.Session.ArchiveDir = filepath.Join(c.DataDir, "sessions")
	}

	if c.Provider.Script != "" && !filepath.IsAbs(c.Provider.Script) {
		c.Provider.Script = filepath.Join(baseDir, c.Provider.Script)
	}
	if c.Agent.OutputSchema != nil && c.Agent.OutputSchema.File != "" && !filepath.IsAbs(c.Agent.OutputSchema.File) {
		c.Agent.OutputSchema.File = filepath.Join(baseDir, c.Agent.OutputSchema.File)
	}
	return nil
}

// Save writes cfg as JSON to the loader path
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.Path()
	if err != nil {
		return err
	}
	if configType(configPath) != "json" {
		return fmt.Errorf("save supports json config files only: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("agent", cfg.Agent)
	v.Set("memory", cfg.Memory)
	v.Set("provider", cfg.Provider)
	v.Set("events", cfg.Events)
	v.Set("logging", cfg.Logging)
	v.Set("server", cfg.Server)
	v.Set("session", cfg.Session)
	v.Set("tracing", cfg.Tracing)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadSchema reads a JSON schema document
func LoadSchema(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return schema, nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
