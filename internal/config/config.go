package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Prefix is the environment variable prefix, e.g. SALON_ASSISTANT_HTTP_PORT.
const Prefix = "SALON_ASSISTANT"

// Config holds the configuration for the assistant service.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"cloud"`

	// Derived or override drivers
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	VectorStore string `envconfig:"VECTOR_STORE" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort           int      `envconfig:"HTTP_PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Storage
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	// Local target paths; empty means under ~/.salon-assistant, ":memory:" keeps data in memory.
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	ChromemPath string `envconfig:"CHROMEM_PATH" default:""`

	// Generation / embeddings
	LLMProvider     string  `envconfig:"LLM_PROVIDER" default:"gemini"`
	LLMModel        string  `envconfig:"LLM_MODEL" default:"gemini-1.5-flash"`
	LLMTemperature  float32 `envconfig:"LLM_TEMPERATURE" default:"0.2"`
	LLMMaxTokens    int     `envconfig:"LLM_MAX_TOKENS" default:"512"`
	EmbedProvider   string  `envconfig:"EMBED_PROVIDER" default:"gemini"`
	EmbedModel      string  `envconfig:"EMBED_MODEL" default:"text-embedding-004"`
	EmbedDimensions int     `envconfig:"EMBED_DIMENSIONS" default:"768"`
	GeminiAPIKey    string  `envconfig:"GEMINI_API_KEY" default:""`
	OllamaURL       string  `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`

	// Knowledge base ingestion
	IngestToken string `envconfig:"INGEST_TOKEN" default:""`
	KBRoot      string `envconfig:"KB_ROOT" default:"kb"`

	// Governance
	RateLimit         int    `envconfig:"RATE_LIMIT" default:"20"`
	RateWindowSeconds int    `envconfig:"RATE_WINDOW_SECONDS" default:"60"`
	MaxMessageLength  int    `envconfig:"MAX_MESSAGE_LENGTH" default:"500"`
	RetrievalLimit    int    `envconfig:"RETRIEVAL_LIMIT" default:"5"`
	WhatsAppURL       string `envconfig:"WHATSAPP_URL" default:""`

	// Timeouts for external calls
	ClassifyTimeoutSeconds int `envconfig:"CLASSIFY_TIMEOUT_SECONDS" default:"8"`
	GenerateTimeoutSeconds int `envconfig:"GENERATE_TIMEOUT_SECONDS" default:"20"`
	EmbedTimeoutSeconds    int `envconfig:"EMBED_TIMEOUT_SECONDS" default:"8"`

	// Health / bootstrap
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"10"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver and VectorStore when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB, defaultVec string

	switch c.BuildTarget {
	case "cloud":
		defaultDB, defaultVec = "postgres", "pgvector"
	case "local":
		defaultDB, defaultVec = "sqlite", "chromem"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	if c.VectorStore == "" || c.VectorStore == "auto" {
		c.VectorStore = defaultVec
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	allowedVec := map[string]bool{"pgvector": true, "chromem": true}
	if !allowedVec[c.VectorStore] {
		return fmt.Errorf("unsupported VECTOR_STORE: %s", c.VectorStore)
	}
	// pgvector lives in the same database as the conversation tables.
	if c.VectorStore == "pgvector" && c.DBDriver != "postgres" {
		return fmt.Errorf("VECTOR_STORE=pgvector requires DB_DRIVER=postgres")
	}
	if c.RateLimit <= 0 || c.RateWindowSeconds <= 0 {
		return fmt.Errorf("rate limit and window must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with SALON_ASSISTANT_
// Example: SALON_ASSISTANT_POSTGRES_DSN, SALON_ASSISTANT_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("vector_store", cfg.VectorStore).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("llm_provider", cfg.LLMProvider).
		Str("llm_model", cfg.LLMModel).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("gemini_key_present", cfg.GeminiAPIKey != "").
		Bool("ingest_token_present", cfg.IngestToken != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		LogLevel:    "debug",
		BuildTarget: "local",
		DBDriver:    "auto",
		VectorStore: "auto",
	}

	cfg.HTTPPort = 8080
	cfg.CORSAllowedOrigins = []string{"*"}
	cfg.SQLitePath = ":memory:"
	cfg.ChromemPath = ":memory:"

	cfg.LLMProvider = "gemini"
	cfg.LLMModel = "gemini-1.5-flash"
	cfg.LLMTemperature = 0.2
	cfg.LLMMaxTokens = 512
	cfg.EmbedProvider = "gemini"
	cfg.EmbedModel = "text-embedding-004"
	cfg.EmbedDimensions = 768
	cfg.KBRoot = "kb"

	cfg.RateLimit = 20
	cfg.RateWindowSeconds = 60
	cfg.MaxMessageLength = 500
	cfg.RetrievalLimit = 5

	cfg.ClassifyTimeoutSeconds = 2
	cfg.GenerateTimeoutSeconds = 2
	cfg.EmbedTimeoutSeconds = 2
	cfg.HealthIntervalSeconds = 1
	cfg.HealthProbeTimeoutSeconds = 1
	cfg.BootstrapTimeoutSeconds = 1

	_ = cfg.ResolveDefaults()
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// RateWindow returns the rate limiting window.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSeconds) * time.Second
}

func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSeconds) * time.Second
}

func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}
