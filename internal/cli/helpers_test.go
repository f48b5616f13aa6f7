package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the logger and event printer to share
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const additionScript = `prompt: add 2 and 3
steps:
  - tool_calls:
      - id: call_1
        name: Addition
        arguments: '{"left": 2, "right": 3}'
  - text: The sum is 5.
`

// workspace creates an isolated HOME with a config using the scripted provider
func workspace(t *testing.T, script string, overrides map[string]interface{}) (dir, configPath, scriptPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", dir)

	scriptPath = filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0644))

	cfg := map[string]interface{}{
		"provider": map[string]interface{}{"name": "scripted", "script": scriptPath},
		"logging":  map[string]interface{}{"console": false, "level": "debug"},
		"data_dir": dir,
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	configPath = filepath.Join(dir, "turnkit.json")
	require.NoError(t, os.WriteFile(configPath, data, 0644))
	return dir, configPath, scriptPath
}

// resetFlags restores every flag of the command tree to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with fresh flag values
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd := GetRootCmd()
	resetFlags(cmd)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
