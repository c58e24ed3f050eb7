package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/finsight-ai/finsight/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Agent       AgentConfig     `toml:"agent"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Format string   `toml:"format"`                                       // "json" or "text"
	Output []string `toml:"output"`                                       // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for AI operations
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests
	Temperature float32 `toml:"temperature"` // Completion temperature
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for AI operations
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests
	Temperature float32 `toml:"temperature"` // Completion temperature
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"` // "gemini" or "claude"
	MaxRetries      int         `toml:"max_retries"`                                     // Retry attempts per call
}

// AnalysisConfig contains the tiered analysis policy parameters. These are
// empirically chosen operating constants, exposed as configuration rather
// than hard-coded at call sites.
type AnalysisConfig struct {
	// ChunkSize is the full-text pagination unit in characters.
	ChunkSize int `toml:"chunk_size" validate:"gt=0"`
	// MaxSummaryDocs caps how many document summaries a tier-one call reads
	// per entity.
	MaxSummaryDocs int `toml:"max_summary_docs" validate:"gt=0"`
	// MinAnswerLength is the tier-one answer length below which the query
	// escalates to full-text analysis.
	MinAnswerLength int `toml:"min_answer_length"`
	// EscalationTriggers are query phrases that force full-text analysis.
	EscalationTriggers []string `toml:"escalation_triggers"`
}

// AgentConfig contains the reasoning loop parameters
type AgentConfig struct {
	// MaxIterations is the hard ceiling on tool-using turns per query.
	// A cost/latency control, not an implementation detail.
	MaxIterations int `toml:"max_iterations" validate:"gt=0"`
	// HistoryWindow is how many prior conversation messages the system
	// prompt embeds (bounded window, never the full history).
	HistoryWindow int `toml:"history_window"`
}

// SchedulerConfig contains cron schedules for background maintenance
type SchedulerConfig struct {
	Enabled               bool   `toml:"enabled"`
	SummaryRefreshCron    string `toml:"summary_refresh_cron"`     // entity summary regeneration
	ConsistencyVerifyCron string `toml:"consistency_verify_cron"` // consistency report logging
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in finsight.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-2.0-flash",
			MaxTokens:   1500,
			Timeout:     "5m",
			RateLimit:   "4s", // 15 RPM for free tier
			Temperature: 0.1,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-3-5-haiku-latest",
			MaxTokens:   1500,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			MaxRetries:      3,
		},
		Analysis: AnalysisConfig{
			ChunkSize:       80000, // suits a single Claude call
			MaxSummaryDocs:  3,
			MinAnswerLength: 80,
			EscalationTriggers: []string{
				"detailed",
				"in-depth",
				"full text",
				"exact wording",
				"verbatim",
				"word for word",
				"specifics",
			},
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			HistoryWindow: 6, // last 3 user/assistant turns
		},
		Scheduler: SchedulerConfig{
			Enabled:               false, // user must explicitly opt in
			SummaryRefreshCron:    "0 0 */6 * * *",
			ConsistencyVerifyCron: "0 30 * * * *",
		},
	}
}

// LoadFromFiles loads configuration with priority:
// defaults -> file1 -> file2 -> ... -> env -> CLI flags.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINSIGHT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if badgerPath := os.Getenv("FINSIGHT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("FINSIGHT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINSIGHT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Provider configuration
	if key := os.Getenv("FINSIGHT_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("FINSIGHT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if key := os.Getenv("FINSIGHT_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if model := os.Getenv("FINSIGHT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if provider := os.Getenv("FINSIGHT_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Analysis policy
	if v := os.Getenv("FINSIGHT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Analysis.ChunkSize = n
		}
	}
	if v := os.Getenv("FINSIGHT_MAX_SUMMARY_DOCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Analysis.MaxSummaryDocs = n
		}
	}

	// Agent policy
	if v := os.Getenv("FINSIGHT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Agent.MaxIterations = n
		}
	}
}

// ResolveAPIKey resolves an API key with priority:
// environment variable -> KV store -> config fallback.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"FINSIGHT_GEMINI_API_KEY"},
		"anthropic_api_key": {"FINSIGHT_CLAUDE_API_KEY"},
	}

	// For Claude, also honor the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
