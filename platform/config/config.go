// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// ContainerConfig provides settings for the disposable database container.
type ContainerConfig interface {
	GetPostgresImage() string
	GetPostgresDatabase() string
	GetPostgresUser() string
	GetPostgresPassword() string
	ShowDockerState() bool
}

// LLMConfig provides settings for the chat-completions endpoint.
type LLMConfig interface {
	GetLLMProvider() string
	GetLLMEndpoint() string
	GetLLMAPIKey() string
	GetLLMModel() string
	GetLLMAPIVersion() string
	GetLLMRequestsPerSecond() float64
}

// TracingConfig provides OpenTelemetry exporter settings.
type TracingConfig interface {
	GetServiceName() string
	GetOTLPEndpoint() string
}

// SeedConfig provides settings for synthetic catalog data.
type SeedConfig interface {
	GetSeedProducts() int
	GetSeedRandom() uint64
}

// CacheConfig provides settings for the optional product lookup cache.
type CacheConfig interface {
	GetRedisURL() string
	GetCacheTTL() time.Duration
	IsCacheEnabled() bool
}

// AgentConfig provides settings for the chat agent.
type AgentConfig interface {
	GetAgentInstructions() string
}

// =============================================================================
// Settings File
// =============================================================================

// DefaultSettingsFile is read from the working directory when APP_SETTINGS_FILE is unset.
const DefaultSettingsFile = "appsettings.yaml"

// DefaultAgentInstructions is the system prompt used when none is configured.
const DefaultAgentInstructions = "You are an AI assistant that helps the user look up information " +
	"about products stored in a PostgreSQL catalog database. Use the find_products tool to query " +
	"products by name, barcode or price range and answer using only the data it returns."

// Settings mirrors the optional YAML settings file. Environment variables win over it.
type Settings struct {
	Env      string `yaml:"env"`
	Database struct {
		URL      string `yaml:"url"`
		Image    string `yaml:"image"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"database"`
	LLM struct {
		Provider          string  `yaml:"provider"`
		Endpoint          string  `yaml:"endpoint"`
		APIKey            string  `yaml:"apiKey"`
		Model             string  `yaml:"model"`
		APIVersion        string  `yaml:"apiVersion"`
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	} `yaml:"llm"`
	Tracing struct {
		ServiceName  string `yaml:"serviceName"`
		OTLPEndpoint string `yaml:"otlpEndpoint"`
	} `yaml:"tracing"`
	Seed struct {
		Products int    `yaml:"products"`
		Random   uint64 `yaml:"random"`
	} `yaml:"seed"`
	Cache struct {
		RedisURL string `yaml:"redisUrl"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`
	Agent struct {
		Instructions string `yaml:"instructions"`
	} `yaml:"agent"`
	ShowDockerState bool `yaml:"showDockerState"`
}

// LoadSettings reads the YAML settings file at path. A missing file yields empty settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return s, nil
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	DatabaseURL          string
	PostgresImage        string
	PostgresDatabase     string
	PostgresUser         string
	PostgresPassword     string
	DockerState          bool
	LLMProvider          string
	LLMEndpoint          string
	LLMAPIKey            string
	LLMModel             string
	LLMAPIVersion        string
	LLMRequestsPerSecond float64
	ServiceName          string
	OTLPEndpoint         string
	SeedProducts         int
	SeedRandom           uint64
	RedisURL             string
	CacheTTL             time.Duration
	AgentInstructions    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// ContainerConfig implementation
func (c *Config) GetPostgresImage() string    { return c.PostgresImage }
func (c *Config) GetPostgresDatabase() string { return c.PostgresDatabase }
func (c *Config) GetPostgresUser() string     { return c.PostgresUser }
func (c *Config) GetPostgresPassword() string { return c.PostgresPassword }
func (c *Config) ShowDockerState() bool       { return c.DockerState }

// LLMConfig implementation
func (c *Config) GetLLMProvider() string           { return c.LLMProvider }
func (c *Config) GetLLMEndpoint() string           { return c.LLMEndpoint }
func (c *Config) GetLLMAPIKey() string             { return c.LLMAPIKey }
func (c *Config) GetLLMModel() string              { return c.LLMModel }
func (c *Config) GetLLMAPIVersion() string         { return c.LLMAPIVersion }
func (c *Config) GetLLMRequestsPerSecond() float64 { return c.LLMRequestsPerSecond }

// TracingConfig implementation
func (c *Config) GetServiceName() string  { return c.ServiceName }
func (c *Config) GetOTLPEndpoint() string { return c.OTLPEndpoint }

// SeedConfig implementation
func (c *Config) GetSeedProducts() int  { return c.SeedProducts }
func (c *Config) GetSeedRandom() uint64 { return c.SeedRandom }

// CacheConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetCacheTTL() time.Duration { return c.CacheTTL }
func (c *Config) IsCacheEnabled() bool       { return c.RedisURL != "" }

// AgentConfig implementation
func (c *Config) GetAgentInstructions() string { return c.AgentInstructions }

// Load reads configuration from the settings file and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	s, err := LoadSettings(getEnv("APP_SETTINGS_FILE", DefaultSettingsFile))
	if err != nil {
		return nil, err
	}

	return FromSettings(s)
}

// FromSettings builds a Config from file settings, letting environment variables override them.
func FromSettings(s Settings) (*Config, error) {
	provider := strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", or(s.LLM.Provider, "azure"))))
	model := getEnv("LLM_MODEL", getEnv("LLM_DEPLOYMENT", s.LLM.Model))
	cacheTTL, err := positiveDuration("CACHE_TTL", or(getEnv("CACHE_TTL", ""), or(s.Cache.TTL, "5m")))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", or(s.Env, "development")),
		DatabaseURL:          getEnv("DATABASE_URL", s.Database.URL),
		PostgresImage:        getEnv("POSTGRES_IMAGE", or(s.Database.Image, "postgres:17-alpine")),
		PostgresDatabase:     getEnv("POSTGRES_DB", or(s.Database.Name, "catalog")),
		PostgresUser:         getEnv("POSTGRES_USER", or(s.Database.User, "catalog")),
		PostgresPassword:     getEnv("POSTGRES_PASSWORD", or(s.Database.Password, "catalog")),
		DockerState:          parseBool(getEnv("SHOW_DOCKER_STATE", ""), s.ShowDockerState),
		LLMProvider:          provider,
		LLMEndpoint:          getEnv("LLM_ENDPOINT", s.LLM.Endpoint),
		LLMAPIKey:            getEnv("LLM_API_KEY", s.LLM.APIKey),
		LLMModel:             model,
		LLMAPIVersion:        getEnv("LLM_API_VERSION", or(s.LLM.APIVersion, "2024-10-21")),
		LLMRequestsPerSecond: mustFloat(getEnv("LLM_REQUESTS_PER_SECOND", ""), or(s.LLM.RequestsPerSecond, 2)),
		ServiceName:          getEnv("OTEL_SERVICE_NAME", or(s.Tracing.ServiceName, "catalog-chat")),
		OTLPEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", s.Tracing.OTLPEndpoint),
		SeedProducts:         mustInt(getEnv("SEED_PRODUCTS", ""), s.Seed.Products),
		SeedRandom:           mustUint64(getEnv("SEED_RANDOM", ""), s.Seed.Random),
		RedisURL:             getEnv("REDIS_URL", s.Cache.RedisURL),
		CacheTTL:             cacheTTL,
		AgentInstructions:    getEnv("AGENT_INSTRUCTIONS", or(s.Agent.Instructions, DefaultAgentInstructions)),
	}

	if cfg.LLMProvider != "azure" && cfg.LLMProvider != "openai" {
		return nil, fmt.Errorf("LLM_PROVIDER must be azure or openai, got %q", cfg.LLMProvider)
	}
	if cfg.LLMEndpoint == "" && cfg.LLMProvider == "azure" {
		return nil, fmt.Errorf("LLM_ENDPOINT is required for the azure provider")
	}
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	if cfg.LLMModel == "" {
		return nil, fmt.Errorf("LLM_MODEL (or LLM_DEPLOYMENT) is required")
	}
	if cfg.SeedProducts < 0 {
		return nil, fmt.Errorf("SEED_PRODUCTS cannot be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func or[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}

// positiveDuration rejects unparsable and non-positive values; a zero TTL would mean "never expire" to Redis.
func positiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 5m, got %q", key, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, value)
	}
	return d, nil
}

func mustInt(value string, fallback int) int {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return result
}

func mustUint64(value string, fallback uint64) uint64 {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	result, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return result
}

func mustFloat(value string, fallback float64) float64 {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return result
}

func parseBool(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.EqualFold(strings.TrimSpace(value), "true")
}
