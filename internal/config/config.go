package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when a loaded configuration cannot be used
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the static configuration of the triage service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Agent    AgentConfig    `yaml:"agent"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ModelConfig configures the direct-model path
type ModelConfig struct {
	Provider        string `yaml:"provider"`
	ModelID         string `yaml:"model_id"`
	Region          string `yaml:"region"`
	MaxTokens       int    `yaml:"max_tokens"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`
}

// AgentConfig configures the managed-agent path. A non-empty ID selects it.
type AgentConfig struct {
	ID      string `yaml:"id"`
	AliasID string `yaml:"alias_id"`
}

// DatabaseConfig describes the Postgres instance checked by the storage health probe
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	IAMAuth  bool   `yaml:"iam_auth"`
	Region   string `yaml:"region"`
}

// Configured reports whether a database host has been set
func (d DatabaseConfig) Configured() bool {
	return d.Host != ""
}

// AuditConfig configures the local assessment audit log. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Model: ModelConfig{
			Provider:       "bedrock",
			ModelID:        "us.anthropic.claude-3-5-sonnet-v2:0",
			Region:         "us-east-1",
			MaxTokens:      1024,
			TimeoutSeconds: 60,
		},
		Agent: AgentConfig{AliasID: "TSTALIASID"},
		Database: DatabaseConfig{
			Port:    5432,
			Name:    "triage",
			SSLMode: "require",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is loaded
// first if present. An empty path falls back to TRIAGE_CONFIG.
func Load(path string) (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("TRIAGE_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = Get("PORT", c.Server.Port)

	c.Agent.ID = Get("BEDROCK_AGENT_ID", c.Agent.ID)
	c.Agent.AliasID = Get("BEDROCK_AGENT_ALIAS_ID", c.Agent.AliasID)

	c.Model.Provider = Get("MODEL_PROVIDER", c.Model.Provider)
	c.Model.ModelID = Get("BEDROCK_MODEL_ID", c.Model.ModelID)
	c.Model.Region = Get("AWS_REGION", c.Model.Region)
	c.Model.MaxTokens = GetInt("MODEL_MAX_TOKENS", c.Model.MaxTokens)
	c.Model.TimeoutSeconds = GetInt("MODEL_TIMEOUT_SECONDS", c.Model.TimeoutSeconds)
	c.Model.AnthropicAPIKey = Get("ANTHROPIC_API_KEY", c.Model.AnthropicAPIKey)
	c.Model.AnthropicModel = Get("ANTHROPIC_MODEL", c.Model.AnthropicModel)
	c.Model.GeminiAPIKey = Get("GEMINI_API_KEY", c.Model.GeminiAPIKey)
	c.Model.GeminiModel = Get("GEMINI_MODEL", c.Model.GeminiModel)

	c.Database.Host = Get("DB_HOST", c.Database.Host)
	c.Database.Port = GetInt("DB_PORT", c.Database.Port)
	c.Database.Name = Get("DB_NAME", c.Database.Name)
	c.Database.User = Get("DB_USER", c.Database.User)
	c.Database.Password = Get("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = Get("DB_SSLMODE", c.Database.SSLMode)
	c.Database.IAMAuth = GetBool("DB_IAM_AUTH", c.Database.IAMAuth)
	c.Database.Region = Get("DB_REGION", c.Database.Region)

	c.Audit.Path = Get("AUDIT_DB_PATH", c.Audit.Path)

	c.Logging.Level = Get("LOG_LEVEL", c.Logging.Level)
	c.Logging.Development = GetBool("LOG_DEVELOPMENT", c.Logging.Development)
}

// Validate checks that the selected path has what it needs
func (c *Config) Validate() error {
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("%w: model.max_tokens must be positive, got %d", ErrInvalidConfig, c.Model.MaxTokens)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("%w: database.port %d out of range", ErrInvalidConfig, c.Database.Port)
	}

	// The model settings only matter when no agent is configured.
	if c.UsesAgent() {
		return nil
	}
	switch strings.ToLower(c.Model.Provider) {
	case "", "bedrock", "aws":
	case "claude", "anthropic":
		if c.Model.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required for provider %q", ErrInvalidConfig, c.Model.Provider)
		}
	case "gemini", "google":
		if c.Model.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for provider %q", ErrInvalidConfig, c.Model.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown model provider %q", ErrInvalidConfig, c.Model.Provider)
	}
	return nil
}

// UsesAgent reports whether the managed-agent path is selected
func (c *Config) UsesAgent() bool {
	return c.Agent.ID != ""
}

// APIKey returns the key for the configured direct-model provider
func (c *Config) APIKey() string {
	switch strings.ToLower(c.Model.Provider) {
	case "claude", "anthropic":
		return c.Model.AnthropicAPIKey
	case "gemini", "google":
		return c.Model.GeminiAPIKey
	default:
		return ""
	}
}

// ModelName returns the model id for the configured direct-model provider.
// An empty result leaves the provider's default in place.
func (c *Config) ModelName() string {
	switch strings.ToLower(c.Model.Provider) {
	case "claude", "anthropic":
		return c.Model.AnthropicModel
	case "gemini", "google":
		return c.Model.GeminiModel
	default:
		return c.Model.ModelID
	}
}

// Get retrieves an environment variable with a fallback value
func Get(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// GetInt retrieves an integer environment variable with a fallback value
func GetInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return fallback
}

// GetBool retrieves a boolean environment variable with a fallback value
func GetBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "true" || value == "1" || value == "yes" || value == "y" {
			return true
		}
		if value == "false" || value == "0" || value == "no" || value == "n" {
			return false
		}
	}
	return fallback
}
