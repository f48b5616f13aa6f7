package cli

import (
	"fmt"

	"github.com/harun/turnkit/pkg/agent"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/provider/scripted"
	"github.com/spf13/cobra"
)

var replayPrompt string

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a scripted conversation offline",
	Long: `Replay runs a task against the scripted provider, which answers from the
steps of a YAML script instead of calling an LLM. The agent, memory and tools
come from the config as usual. The run result and every event are printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPrompt, "prompt", "", "prompt to run (defaults to the script prompt)")
	rootCmd.AddCommand(replayCmd)
}

// replayReport is the replay command output
type replayReport struct {
	Result   agent.RunResult `json:"result"`
	Error    string          `json:"error,omitempty"`
	Events   []event.Event   `json:"events"`
	LLMCalls int             `json:"llm_calls"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	rt, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	script, err := scripted.Load(args[0])
	if err != nil {
		return err
	}

	prompt := replayPrompt
	if prompt == "" {
		prompt = script.Prompt
	}
	if prompt == "" {
		return fmt.Errorf("no prompt: pass --prompt or set prompt in %s", args[0])
	}

	mem, closeMem, err := buildMemory(rt.cfg.Memory, "replay", rt.logger)
	if err != nil {
		return err
	}
	defer closeMem()

	a, err := buildAgent(rt.cfg.Agent, mem, rt.logger)
	if err != nil {
		return err
	}

	llm := scripted.FromScript(*script)
	recorder := event.NewRecorder()

	result, runErr := runTask(cmd.Context(), rt, a, llm, prompt, recorder)

	report := replayReport{
		Result:   result,
		Events:   recorder.Events(),
		LLMCalls: llm.Calls(),
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	return runErr
}
