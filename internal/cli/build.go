package cli

import (
	"fmt"
	"strings"

	"github.com/harun/turnkit/internal/config"
	"github.com/harun/turnkit/pkg/agent"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/memory"
	"github.com/harun/turnkit/pkg/provider/anthropic"
	"github.com/harun/turnkit/pkg/provider/openai"
	"github.com/harun/turnkit/pkg/provider/scripted"
	"github.com/harun/turnkit/pkg/session"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/harun/turnkit/pkg/tool/builtin"
	"github.com/rs/zerolog"
)

func buildProvider(cfg config.ProviderConfig, logger zerolog.Logger) (chat.Provider, error) {
	logger = logger.With().Str("provider", cfg.Name).Logger()

	switch cfg.Name {
	case "openai":
		p, err := openai.New(openai.Config{
			APIKey:      cfg.ResolveAPIKey(),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			MaxRetries:  cfg.MaxRetries,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "anthropic":
		p, err := anthropic.New(anthropic.Config{
			APIKey:      cfg.ResolveAPIKey(),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			MaxRetries:  cfg.MaxRetries,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "scripted":
		script, err := scripted.Load(cfg.Script)
		if err != nil {
			return nil, err
		}
		return scripted.FromScript(*script), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// buildMemory returns nil for memory type none. conversation scopes SQLite rows.
func buildMemory(cfg config.MemoryConfig, conversation string, logger zerolog.Logger) (memory.Provider, func() error, error) {
	noop := func() error { return nil }

	strategy, err := memory.ParseTrimStrategy(cfg.Strategy)
	if err != nil {
		return nil, noop, err
	}

	switch cfg.Type {
	case "", "none":
		return nil, noop, nil
	case string(memory.TypeSlidingWindow):
		return memory.NewSlidingWindowWithStrategy(cfg.Window, strategy), noop, nil
	case string(memory.TypeSQLite):
		path := cfg.Path
		if path != ":memory:" && !strings.Contains(path, "?") {
			path += "?_busy_timeout=5000"
		}
		m, err := memory.OpenSQLite(memory.SQLiteConfig{
			Path:         path,
			Conversation: conversation,
			Window:       cfg.Window,
			Strategy:     strategy,
			Logger:       logger.With().Str("component", "memory").Logger(),
		})
		if err != nil {
			return nil, noop, err
		}
		return m, m.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown memory type %q", cfg.Type)
	}
}

func buildTools(names []string) ([]tool.Tool, error) {
	available := tool.NewRegistry(builtin.All()...)

	var tools []tool.Tool
	for _, name := range names {
		if name == "*" {
			return available.Tools(), nil
		}
		t, ok := available.Find(name)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(available.Names(), ", "))
		}
		tools = append(tools, t)
	}
	return tools, nil
}

func buildAgent(cfg config.AgentConfig, mem memory.Provider, logger zerolog.Logger) (*agent.Agent, error) {
	executor, err := agent.NewExecutor(cfg.Executor, agent.ExecutorConfig{MaxTurns: cfg.MaxTurns})
	if err != nil {
		return nil, err
	}

	tools, err := buildTools(cfg.Tools)
	if err != nil {
		return nil, err
	}

	var schema *chat.StructuredOutputFormat
	if cfg.OutputSchema != nil {
		doc, err := config.LoadSchema(cfg.OutputSchema.File)
		if err != nil {
			return nil, err
		}
		schema = &chat.StructuredOutputFormat{
			Name:        cfg.OutputSchema.Name,
			Description: cfg.OutputSchema.Description,
			Schema:      doc,
			Strict:      cfg.OutputSchema.Strict,
		}
	}

	return agent.New(agent.Config{
		Name:         cfg.Name,
		Description:  cfg.Description,
		OutputSchema: schema,
		Executor:     executor,
		Tools:        tools,
		Memory:       mem,
		Logger:       logger,
	})
}

func openArchive(cfg config.SessionConfig, logger zerolog.Logger) (*session.Archive, error) {
	if !cfg.Archive {
		return nil, nil
	}
	return session.OpenArchive(cfg.ArchiveDir, logger.With().Str("component", "archive").Logger())
}
