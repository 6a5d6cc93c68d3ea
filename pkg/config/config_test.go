package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:  "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "askdb",
			Database: "retail",
			SSLMode:  "disable",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
		},
		Agent: AgentConfig{
			DefaultRowLimit:      10,
			MaxRowLimit:          1000,
			MaxValidationRetries: 2,
			MaxCompletionRetries: 2,
			QueryTimeoutSeconds:  30,
			RequestBudgetSeconds: 120,
		},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsUnknownDialect(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Dialect = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Provider = "bard"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroRowLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.DefaultRowLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMaxBelowDefault(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.MaxRowLimit = 5
	assert.Error(t, cfg.Validate())
}

func TestConnectionString_Postgres(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "secret"

	connStr := cfg.Database.ConnectionString()
	assert.Equal(t, "host=localhost port=5432 user=askdb password=secret dbname=retail sslmode=disable", connStr)
}

func TestConnectionString_MSSQL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Dialect = "mssql"
	cfg.Database.Port = 1433
	cfg.Database.Password = "secret"

	connStr := cfg.Database.ConnectionString()
	assert.Contains(t, connStr, "server=localhost")
	assert.Contains(t, connStr, "port=1433")
	assert.Contains(t, connStr, "database=retail")
}
