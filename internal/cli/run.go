package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/harun/turnkit/pkg/agent"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/session"
	"github.com/spf13/cobra"
)

var runEvents bool

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run one task against the configured provider",
	Long: `Run one task with the configured agent, provider, memory and builtin tools.
The run result is printed to stdout as JSON. With --events every agent event
is written to stderr as one JSON line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runEvents, "events", false, "print agent events to stderr")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	llm, err := buildProvider(rt.cfg.Provider, rt.logger)
	if err != nil {
		return err
	}
	mem, closeMem, err := buildMemory(rt.cfg.Memory, "default", rt.logger)
	if err != nil {
		return err
	}
	defer closeMem()

	a, err := buildAgent(rt.cfg.Agent, mem, rt.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []event.Sink
	if runEvents {
		printer := newEventPrinter(cmd.ErrOrStderr(), rt.cfg.Events.Buffer)
		defer printer.Close()
		sinks = append(sinks, printer)
	}

	result, runErr := runTask(ctx, rt, a, llm, strings.Join(args, " "), sinks...)
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	return runErr
}

// runTask runs prompt in a fresh session, archiving it when configured.
// Events go to the log and to each of sinks.
func runTask(ctx context.Context, rt *app, a *agent.Agent, llm chat.Provider, prompt string, sinks ...event.Sink) (agent.RunResult, error) {
	sinks = append(sinks, event.NewLogSink(rt.logger.With().Str("component", "events").Logger()))

	archive, err := openArchive(rt.cfg.Session, rt.logger)
	if err != nil {
		return agent.RunResult{}, err
	}

	manager := session.NewManager(session.ManagerConfig{
		Sink:    event.Multi(sinks...),
		Archive: archive,
		Logger:  rt.logger,
	})
	defer manager.Close()

	s := manager.CreateSession()
	s.RegisterAgent(a)
	s.AddTask(agent.NewTask(prompt))

	return s.Run(ctx, a.ID(), llm)
}

// eventPrinter writes events as JSON lines from a bounded channel
type eventPrinter struct {
	ch   *event.Channel
	wg   sync.WaitGroup
	once sync.Once
}

func newEventPrinter(w io.Writer, buffer int) *eventPrinter {
	p := &eventPrinter{ch: event.NewChannel(buffer)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		enc := json.NewEncoder(w)
		for e := range p.ch.Events() {
			_ = enc.Encode(e)
		}
	}()
	return p
}

func (p *eventPrinter) Send(e event.Event) error {
	return p.ch.Send(e)
}

// Close flushes queued events
func (p *eventPrinter) Close() {
	p.once.Do(func() {
		p.ch.Close()
		p.wg.Wait()
	})
}
