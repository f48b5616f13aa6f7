package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	validExecutors  = []string{"default", "react"}
	validMemory     = []string{"none", "sliding_window", "sqlite"}
	validStrategies = []string{"drop", "summarize"}
	validProviders  = []string{"openai", "anthropic", "scripted"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

func oneOf(kind, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (must be one of: %s)", kind, value, strings.Join(valid, ", "))
}

// ResolveAPIKey returns the configured key, falling back to api_key_env and then
// the provider's conventional environment variable
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	switch p.Name {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("max tokens must not be negative, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, validLogLevels)
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateOutputSchema checks that the schema file exists and is a JSON schema
func (v *Validator) ValidateOutputSchema(cfg *OutputSchemaConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.File == "" {
		return fmt.Errorf("output_schema.file is required")
	}
	schema, err := LoadSchema(cfg.File)
	if err != nil {
		return err
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
		return fmt.Errorf("output schema %s is not a valid JSON schema: %w", cfg.File, err)
	}
	return nil
}

func (v *Validator) validateAgent(cfg AgentConfig) []error {
	var errs []error
	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, fmt.Errorf("agent.name is required"))
	}
	if err := oneOf("agent.executor", cfg.Executor, validExecutors); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("agent.max_turns must be >= 0"))
	}
	if err := v.ValidateOutputSchema(cfg.OutputSchema); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (v *Validator) validateMemory(cfg MemoryConfig) []error {
	var errs []error
	if err := oneOf("memory.type", cfg.Type, validMemory); err != nil {
		return append(errs, err)
	}
	if cfg.Type == "none" {
		return nil
	}
	if cfg.Window < 0 {
		errs = append(errs, fmt.Errorf("memory.window must be >= 0"))
	}
	if cfg.Type == "sliding_window" && cfg.Window == 0 {
		errs = append(errs, fmt.Errorf("memory.window must be positive for sliding_window"))
	}
	if cfg.Strategy != "" {
		if err := oneOf("memory.strategy", cfg.Strategy, validStrategies); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (v *Validator) validateProvider(cfg ProviderConfig) []error {
	var errs []error
	if err := oneOf("provider.name", cfg.Name, validProviders); err != nil {
		return append(errs, err)
	}

	switch cfg.Name {
	case "scripted":
		if cfg.Script == "" {
			errs = append(errs, fmt.Errorf("provider.script is required for the scripted provider"))
		}
	default:
		key := cfg.ResolveAPIKey()
		if cfg.BaseURL != "" && key != "" {
			// compatible endpoints use their own key formats
			break
		}
		if err := v.ValidateAPIKey(key, cfg.Name); err != nil {
			errs = append(errs, err)
		}
	}

	if err := v.ValidateTemperature(cfg.Temperature); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateMaxTokens(cfg.MaxTokens); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("provider.max_retries must be >= 0"))
	}
	return errs
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	errs = append(errs, v.validateAgent(cfg.Agent)...)
	errs = append(errs, v.validateMemory(cfg.Memory)...)
	errs = append(errs, v.validateProvider(cfg.Provider)...)

	if cfg.Events.Buffer < 0 {
		errs = append(errs, fmt.Errorf("events.buffer must be >= 0"))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errs = append(errs, err)
	}
	if r := cfg.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", r))
	}

	return errs
}
