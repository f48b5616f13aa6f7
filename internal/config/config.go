package config

import (
	"encoding/json"
	"errors"

	"github.com/harun/turnkit/internal/logger"
)

// Config represents the turnkit configuration
type Config struct {
	Agent    AgentConfig    `json:"agent" mapstructure:"agent"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`
	Events   EventsConfig   `json:"events" mapstructure:"events"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Session  SessionConfig  `json:"session" mapstructure:"session"`
	Tracing  TracingConfig  `json:"tracing" mapstructure:"tracing"`

	// Data directory, $HOME/.turnkit when empty
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig describes the agent built for run and serve
type AgentConfig struct {
	Name         string              `json:"name" mapstructure:"name"`
	Description  string              `json:"description" mapstructure:"description"`
	Executor     string              `json:"executor" mapstructure:"executor"` // default, react
	MaxTurns     int                 `json:"max_turns" mapstructure:"max_turns"`
	Tools        []string            `json:"tools" mapstructure:"tools"` // builtin tool names, "*" for all
	OutputSchema *OutputSchemaConfig `json:"output_schema,omitempty" mapstructure:"output_schema"`
}

// OutputSchemaConfig points at a JSON schema file for structured output.
// The schema lives in its own file because viper folds map keys to lower case.
type OutputSchemaConfig struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	File        string `json:"file" mapstructure:"file"`
	Strict      bool   `json:"strict" mapstructure:"strict"`
}

// MemoryConfig selects the conversation store
type MemoryConfig struct {
	Type     string `json:"type" mapstructure:"type"` // none, sliding_window, sqlite
	Window   int    `json:"window" mapstructure:"window"`
	Strategy string `json:"strategy" mapstructure:"strategy"` // drop, summarize
	Path     string `json:"path" mapstructure:"path"`
}

// ProviderConfig selects and configures the LLM backend
type ProviderConfig struct {
	Name        string  `json:"name" mapstructure:"name"` // openai, anthropic, scripted
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	APIKeyEnv   string  `json:"api_key_env" mapstructure:"api_key_env"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	Script      string  `json:"script" mapstructure:"script"` // scripted provider YAML
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries  int     `json:"max_retries" mapstructure:"max_retries"`
}

// EventsConfig sizes event buffers
type EventsConfig struct {
	Buffer int `json:"buffer" mapstructure:"buffer"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// ServerConfig holds the serve HTTP listener configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// SessionConfig controls the task archive
type SessionConfig struct {
	Archive    bool   `json:"archive" mapstructure:"archive"`
	ArchiveDir string `json:"archive_dir" mapstructure:"archive_dir"`
}

// TracingConfig enables OpenTelemetry spans written to the debug log
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "turnkit",
			Description: "You are a helpful assistant.",
			Executor:    "react",
			MaxTurns:    10,
			Tools:       []string{"*"},
		},
		Memory: MemoryConfig{
			Type:     "sliding_window",
			Window:   50,
			Strategy: "drop",
		},
		Provider: ProviderConfig{
			Name: "openai",
		},
		Events: EventsConfig{
			Buffer: 64,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Session: SessionConfig{
			Archive: true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// Logger converts the logging section for logger.New
func (c LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:     c.Level,
		File:      c.File,
		Console:   c.Console,
		Pretty:    c.Pretty,
		Redaction: c.Redaction,
		MaxSize:   c.MaxSize,
		MaxAge:    c.MaxAge,
		Compress:  c.Compress,
	}
}

// String returns a JSON representation of the config with the API key masked
func (c *Config) String() string {
	masked := *c
	if masked.Provider.APIKey != "" {
		masked.Provider.APIKey = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
