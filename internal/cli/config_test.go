package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/turnkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	t.Run("should accept a valid config", func(t *testing.T) {
		_, configPath, _ := workspace(t, additionScript, nil)

		out, _, err := execute(t, "config", "validate", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, out, "is valid")
	})

	t.Run("should list validation errors", func(t *testing.T) {
		_, configPath, _ := workspace(t, additionScript, map[string]interface{}{
			"memory": map[string]interface{}{"type": "redis"},
			"server": map[string]interface{}{"port": 0},
		})

		_, _, err := execute(t, "config", "validate", "--config", configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory.type")
		assert.Contains(t, err.Error(), "port")
	})

	t.Run("should show the effective config with the key masked", func(t *testing.T) {
		_, configPath, _ := workspace(t, additionScript, map[string]interface{}{
			"provider": map[string]interface{}{"name": "openai", "api_key": "sk-secret-value"},
		})

		out, _, err := execute(t, "config", "show", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, out, `"max_turns": 10`)
		assert.NotContains(t, out, "sk-secret-value")
	})

	t.Run("should write defaults once", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("HOME", dir)
		configPath := filepath.Join(dir, "new", "turnkit.json")

		out, _, err := execute(t, "config", "init", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, out, configPath)

		cfg, err := config.Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "turnkit", cfg.Agent.Name)

		_, _, err = execute(t, "config", "init", "--config", configPath)
		assert.Error(t, err)

		_, _, err = execute(t, "config", "init", "--config", configPath, "--force")
		assert.NoError(t, err)
		_, err = os.Stat(configPath)
		assert.NoError(t, err)
	})
}
