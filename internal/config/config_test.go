package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider.APIKey = "sk-test-1234567890"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "turnkit", cfg.Agent.Name)
	assert.Equal(t, "react", cfg.Agent.Executor)
	assert.Equal(t, 10, cfg.Agent.MaxTurns)
	assert.Equal(t, []string{"*"}, cfg.Agent.Tools)
	assert.Nil(t, cfg.Agent.OutputSchema)
	assert.Equal(t, "sliding_window", cfg.Memory.Type)
	assert.Equal(t, 50, cfg.Memory.Window)
	assert.Equal(t, "drop", cfg.Memory.Strategy)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, 64, cfg.Events.Buffer)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Session.Archive)
}

func TestConfigString(t *testing.T) {
	cfg := validConfig()

	s := cfg.String()
	assert.Contains(t, s, `"max_turns": 10`)
	assert.NotContains(t, s, "sk-test-1234567890")
	assert.Equal(t, "sk-test-1234567890", cfg.Provider.APIKey, "should not mutate the config")
}

func TestLoggingConfigLogger(t *testing.T) {
	cfg := DefaultConfig().Logging
	cfg.File = "/var/log/turnkit.log"

	lc := cfg.Logger()
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "/var/log/turnkit.log", lc.File)
	assert.True(t, lc.Console)
	assert.True(t, lc.Redaction)
	assert.Equal(t, 100, lc.MaxSize)
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	t.Run("should accept a valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("should require an api key for openai", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai API key cannot be empty")
	})

	t.Run("should read the key from api_key_env", func(t *testing.T) {
		t.Setenv("MY_KEY", "sk-ant-from-env-123")
		cfg := DefaultConfig()
		cfg.Provider.Name = "anthropic"
		cfg.Provider.APIKeyEnv = "MY_KEY"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("should accept any key format with a base url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider.APIKey = "local-key"
		cfg.Provider.BaseURL = "http://localhost:11434/v1"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("should require a script for the scripted provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider.Name = "scripted"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider.script is required")

		cfg.Provider.Script = "replay.yaml"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("should report every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.Agent.Executor = "planner"
		cfg.Memory.Type = "redis"
		cfg.Server.Port = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent.executor")
		assert.Contains(t, err.Error(), "memory.type")
		assert.Contains(t, err.Error(), "port must be between")
	})

	t.Run("should accept memory none without a window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Memory = MemoryConfig{Type: "none"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("should validate the output schema file", func(t *testing.T) {
		dir := t.TempDir()
		good := filepath.Join(dir, "weather.json")
		require.NoError(t, os.WriteFile(good, []byte(`{"type":"object","properties":{"tempC":{"type":"number"}}}`), 0644))
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"type": 12}`), 0644))

		cfg := validConfig()
		cfg.Agent.OutputSchema = &OutputSchemaConfig{Name: "weather", File: good}
		assert.NoError(t, cfg.Validate())

		cfg.Agent.OutputSchema.File = bad
		assert.Error(t, cfg.Validate())

		cfg.Agent.OutputSchema.File = filepath.Join(dir, "missing.json")
		assert.Error(t, cfg.Validate())
	})
}
