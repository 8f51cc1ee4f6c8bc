package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for zelta-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets (database
// password, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Version is the build-time version string, injected by main.
	Version string `yaml:"-"`

	// MigrationsPath points at the SQL migration files applied at startup.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	AI       AIConfig       `yaml:"ai"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"zelta"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"zelta_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// AuthConfig holds bearer-token authentication configuration.
type AuthConfig struct {
	// Disabled turns off token verification for local development.
	Disabled bool `yaml:"disabled" env:"AUTH_DISABLED" env-default:"false"`

	// JWKSURL is the key set endpoint of the token issuer.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`

	// Issuer and Audience are matched against token claims.
	Issuer   string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:""`
}

// AIConfig holds generation-backend configuration.
type AIConfig struct {
	// Provider selects the text backend: openai or anthropic.
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`

	// APIKey authenticates the selected provider. Falls back to
	// OPENAI_API_KEY when the provider is openai and AI_API_KEY is unset.
	APIKey string `yaml:"-" env:"AI_API_KEY"`

	// OpenAIAPIKey is used for image generation, which always runs against
	// OpenAI regardless of the text provider.
	OpenAIAPIKey string `yaml:"-" env:"OPENAI_API_KEY"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`

	Model         string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o"`
	FallbackModel string `yaml:"fallback_model" env:"AI_FALLBACK_MODEL" env-default:"gpt-4o-mini"`

	ImageModel string `yaml:"image_model" env:"AI_IMAGE_MODEL" env-default:"dall-e-3"`
	ImageSize  string `yaml:"image_size" env:"AI_IMAGE_SIZE" env-default:"1792x1024"`

	Temperature float32 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.7"`

	// MaxConcurrentImages bounds the stage-3 image fan-out.
	MaxConcurrentImages int `yaml:"max_concurrent_images" env:"AI_MAX_CONCURRENT_IMAGES" env-default:"4"`
}

// Load reads configuration from the YAML file at path (if it exists) with
// environment variable overrides, then validates it. A missing file is not
// an error; the environment alone can carry the full configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		return fmt.Errorf("database host, user, and database are required")
	}

	if !c.Auth.Disabled {
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("auth.jwks_url is required unless auth is disabled")
		}
		if c.Auth.Issuer == "" {
			return fmt.Errorf("auth.issuer is required unless auth is disabled")
		}
	}

	switch strings.ToLower(c.AI.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported ai.provider: %s", c.AI.Provider)
	}
	if c.AI.EffectiveAPIKey() == "" {
		return fmt.Errorf("an API key for provider %s is required (AI_API_KEY)", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// IsProduction reports whether the service runs with the production profile.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// EffectiveAPIKey resolves the text-provider API key, falling back to the
// OpenAI key when the provider is openai.
func (c *AIConfig) EffectiveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if strings.EqualFold(c.Provider, "openai") {
		return c.OpenAIAPIKey
	}
	return ""
}
