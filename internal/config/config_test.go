package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/resumeforge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
  allowed_origins: "http://localhost:3000"
  environment: "development"
  log_level: "debug"
database:
  type: "sqlite"
  file_path: "/tmp/test.db"
credits:
  free_tier_credits: 3
  costs:
    CV_GENERATION: 2.0
    ats_optimization: 0.25
cache:
  redis_url: "redis://localhost:6379"
  balance_ttl_seconds: 30
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, models.SQLite, cfg.Database.Type)
	assert.Equal(t, 3.0, cfg.Credits.FreeTierCredits)
	assert.Equal(t, 30, cfg.Cache.BalanceTTLSeconds)

	// Cost keys are normalized so config files may use either casing.
	assert.Equal(t, 2.0, cfg.Credits.Costs[models.ActionCVGeneration])
	assert.Equal(t, 0.25, cfg.Credits.Costs[models.ActionATSOptimization])

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_LEDGER_PORT", "7777")
	os.Unsetenv("TEST_LEDGER_ORIGINS")

	path := writeConfigFile(t, `
server:
  port: "${TEST_LEDGER_PORT:-8080}"
  allowed_origins: "${TEST_LEDGER_ORIGINS:-http://localhost:3000}"
database:
  type: "sqlite"
  file_path: "/tmp/test.db"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.Server.Port, "set variables win")
	assert.Equal(t, "http://localhost:3000", cfg.Server.AllowedOrigins, "unset variables fall back to the default")
}

func TestLoadFromFileRejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../../etc/passwd.yaml")
	assert.Error(t, err)

	_, err = LoadFromFile("config.json")
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
			},
			Database: &models.DatabaseConfig{
				Type:     models.SQLite,
				FilePath: "/tmp/test.db",
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing fields reported together", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = ""
		cfg.Database = nil

		err := cfg.Validate()
		require.Error(t, err)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.MissingFields, "server.port")
		assert.Contains(t, vErr.MissingFields, "database")
	})

	t.Run("negative free tier", func(t *testing.T) {
		cfg := base()
		cfg.Credits.FreeTierCredits = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("cost for non-usage action", func(t *testing.T) {
		cfg := base()
		cfg.Credits.Costs = map[models.CreditAction]float64{models.ActionPurchase: 1}
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative cost", func(t *testing.T) {
		cfg := base()
		cfg.Credits.Costs = map[models.CreditAction]float64{models.ActionCVGeneration: -1}
		assert.Error(t, cfg.Validate())
	})
}
