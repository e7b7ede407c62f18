package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/resumeforge/backend/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server   models.ServerConfig    `yaml:"server"`
	Database *models.DatabaseConfig `yaml:"database,omitempty"`
	Billing  *models.StripeConfig   `yaml:"billing,omitempty"`
	Auth     *models.AuthConfig     `yaml:"auth,omitempty"`
	Credits  models.CreditsConfig   `yaml:"credits"`
	Cache    *models.CacheConfig    `yaml:"cache,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	// Ensure the path doesn't contain directory traversal attempts
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	// Restrict to certain file extensions for security
	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	// Read the file
	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	// Parse YAML with env vars substituted
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize cost-table keys to lowercase so YAML can use either casing
	if config.Credits.Costs != nil {
		normalized := make(map[models.CreditAction]float64, len(config.Credits.Costs))
		for action, cost := range config.Credits.Costs {
			normalized[models.CreditAction(strings.ToLower(string(action)))] = cost
		}
		config.Credits.Costs = normalized
	}

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			// File exists, try to load it
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	// Pattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		// Extract variable name and default value
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			// Remove the leading '-' from default value
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		// Get environment variable value
		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.Database == nil {
		missing = append(missing, "database")
	}
	if c.Credits.FreeTierCredits < 0 {
		return fmt.Errorf("credits.free_tier_credits must not be negative")
	}
	for action, cost := range c.Credits.Costs {
		if !action.IsUsage() {
			return fmt.Errorf("credits.costs: %q is not a usage action", action)
		}
		if cost < 0 {
			return fmt.Errorf("credits.costs: cost for %q must not be negative", action)
		}
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
