package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for askdb.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Target datasource (the retail database being queried)
	Database DatabaseConfig `yaml:"database"`

	// Completion backend configuration
	LLM LLMConfig `yaml:"llm"`

	// Agent pipeline tuning
	Agent AgentConfig `yaml:"agent"`
}

// DatabaseConfig holds target database configuration.
// Dialect selects the adapter: "postgres" or "mssql".
type DatabaseConfig struct {
	Dialect  string `yaml:"dialect" env:"DB_DIALECT" env-default:"postgres"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"askdb"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DB_NAME" env-default:"retail"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
}

// LLMConfig holds completion backend settings.
// Provider selects the client: "openai" (any OpenAI-compatible endpoint)
// or "anthropic".
type LLMConfig struct {
	Provider       string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint       string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model          string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey         string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
}

// AgentConfig holds pipeline tuning knobs.
type AgentConfig struct {
	// DefaultRowLimit is the row cap applied when the caller does not
	// supply top_k, and the limit injected during validation repair.
	DefaultRowLimit int `yaml:"default_row_limit" env:"AGENT_DEFAULT_ROW_LIMIT" env-default:"10"`

	// MaxRowLimit bounds caller-supplied top_k.
	MaxRowLimit int `yaml:"max_row_limit" env:"AGENT_MAX_ROW_LIMIT" env-default:"1000"`

	// MaxValidationRetries bounds the reprompt loop after extraction or
	// validation failures.
	MaxValidationRetries int `yaml:"max_validation_retries" env:"AGENT_MAX_VALIDATION_RETRIES" env-default:"2"`

	// MaxCompletionRetries bounds retries of transient completion errors.
	MaxCompletionRetries int `yaml:"max_completion_retries" env:"AGENT_MAX_COMPLETION_RETRIES" env-default:"2"`

	// QueryTimeoutSeconds is the per-execution database timeout.
	// Expiry is terminal; a slow query is never re-run.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"AGENT_QUERY_TIMEOUT_SECONDS" env-default:"30"`

	// RequestBudgetSeconds is the wall-clock budget for a whole request:
	// reprompt loop, execution and composition combined.
	RequestBudgetSeconds int `yaml:"request_budget_seconds" env:"AGENT_REQUEST_BUDGET_SECONDS" env-default:"120"`

	// JoinWhitelistPath points at an optional YAML file of extra join
	// equalities permitted beyond declared foreign keys.
	JoinWhitelistPath string `yaml:"join_whitelist_path" env:"AGENT_JOIN_WHITELIST_PATH" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used when no config.yaml is present (containers, tests).
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints not expressible as tags.
func (c *Config) Validate() error {
	switch c.Database.Dialect {
	case "postgres", "mssql":
	default:
		return fmt.Errorf("unsupported database dialect %q", c.Database.Dialect)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}

	if c.Agent.DefaultRowLimit <= 0 {
		return fmt.Errorf("default_row_limit must be positive, got %d", c.Agent.DefaultRowLimit)
	}
	if c.Agent.MaxRowLimit < c.Agent.DefaultRowLimit {
		return fmt.Errorf("max_row_limit %d is below default_row_limit %d", c.Agent.MaxRowLimit, c.Agent.DefaultRowLimit)
	}
	if c.Agent.MaxValidationRetries < 0 {
		return fmt.Errorf("max_validation_retries must not be negative")
	}

	return nil
}

// ConnectionString returns a driver connection string for the configured dialect.
func (c *DatabaseConfig) ConnectionString() string {
	switch c.Dialect {
	case "mssql":
		return fmt.Sprintf(
			"server=%s;port=%d;user id=%s;password=%s;database=%s",
			c.Host, c.Port, c.User, c.Password, c.Database,
		)
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	}
}
