package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lookout.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, webhook secrets, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// AppURL is the public dashboard URL used for checkout redirects.
	// Falls back to BaseURL when empty.
	AppURL string `yaml:"app_url" env:"APP_URL" env-default:""`

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// CookieDomain is the domain for auth and session cookies (optional).
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	Auth        AuthConfig        `yaml:"auth"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Mentions    MentionsConfig    `yaml:"mentions"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Stripe      StripeConfig      `yaml:"stripe"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	MCP         MCPConfig         `yaml:"mcp"`

	// PlansFile optionally points at a YAML plan catalog replacing the built-in one.
	PlansFile string `yaml:"plans_file" env:"PLANS_FILE" env-default:""`

	// Plans is the loaded plan catalog (not from config file).
	Plans *PlanCatalog `yaml:"-"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// Audience, when set, must appear in the token's aud claim.
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:""`

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration `yaml:"leeway" env:"AUTH_LEEWAY" env-default:"30s"`

	// CookieName is the cookie carrying the session JWT for browser clients.
	CookieName string `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"lookout_jwt"`

	// SessionSecret signs the checkout session cookie.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"lookout"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"lookout"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// SlowQuery logs statements slower than this; zero disables it.
	SlowQuery time.Duration `yaml:"slow_query" env:"PGSLOW_QUERY" env-default:"500ms"`
	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool `yaml:"auto_migrate" env:"PGAUTO_MIGRATE" env-default:"true"`
}

// RedisConfig holds Redis configuration. Redis is optional; an empty host disables it.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// ProviderConfig configures one text-generation provider.
// A provider without an API key is left out of the gateway.
type ProviderConfig struct {
	APIKey    string `yaml:"-"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	BaseURL   string `yaml:"base_url"`
}

// ProvidersConfig holds the three providers prompts are dispatched to.
type ProvidersConfig struct {
	OpenAI    OpenAIProviderConfig    `yaml:"openai"`
	Anthropic AnthropicProviderConfig `yaml:"anthropic"`
	Google    GoogleProviderConfig    `yaml:"google"`

	// CallTimeout bounds a single provider call. Zero means no timeout.
	CallTimeout time.Duration `yaml:"call_timeout" env:"PROVIDER_CALL_TIMEOUT" env-default:"0s"`
}

type OpenAIProviderConfig struct {
	APIKey    string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	Model     string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	MaxTokens int    `yaml:"max_tokens" env:"OPENAI_MAX_TOKENS" env-default:"1000"`
	BaseURL   string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:""`
}

type AnthropicProviderConfig struct {
	APIKey    string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Model     string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-sonnet-20241022"`
	MaxTokens int    `yaml:"max_tokens" env:"ANTHROPIC_MAX_TOKENS" env-default:"1000"`
	BaseURL   string `yaml:"base_url" env:"ANTHROPIC_BASE_URL" env-default:""`
}

type GoogleProviderConfig struct {
	APIKey    string `yaml:"-" env:"GOOGLE_GENERATIVE_AI_API_KEY"` // Secret - not in YAML
	Model     string `yaml:"model" env:"GOOGLE_MODEL" env-default:"gemini-1.5-pro"`
	MaxTokens int    `yaml:"max_tokens" env:"GOOGLE_MAX_TOKENS" env-default:"1000"`
	BaseURL   string `yaml:"base_url" env:"GOOGLE_BASE_URL" env-default:"https://generativelanguage.googleapis.com/v1beta"`
	// SearchGrounding enables the google_search tool on generation requests.
	SearchGrounding bool `yaml:"search_grounding" env:"GOOGLE_SEARCH_GROUNDING" env-default:"true"`
}

// Provider returns the generic view of a provider's configuration.
func (c OpenAIProviderConfig) Provider() ProviderConfig {
	return ProviderConfig{APIKey: c.APIKey, Model: c.Model, MaxTokens: c.MaxTokens, BaseURL: c.BaseURL}
}

// Provider returns the generic view of a provider's configuration.
func (c AnthropicProviderConfig) Provider() ProviderConfig {
	return ProviderConfig{APIKey: c.APIKey, Model: c.Model, MaxTokens: c.MaxTokens, BaseURL: c.BaseURL}
}

// Provider returns the generic view of a provider's configuration.
func (c GoogleProviderConfig) Provider() ProviderConfig {
	return ProviderConfig{APIKey: c.APIKey, Model: c.Model, MaxTokens: c.MaxTokens, BaseURL: c.BaseURL}
}

// MentionsConfig controls the mention extraction batch.
type MentionsConfig struct {
	Model string `yaml:"model" env:"MENTIONS_MODEL" env-default:"gpt-4o-mini"`
	// Concurrency is the number of results analyzed at once. 1 keeps the batch sequential.
	Concurrency int `yaml:"concurrency" env:"MENTIONS_CONCURRENCY" env-default:"1"`
}

// SuggestionsConfig controls prompt and topic suggestion generation.
type SuggestionsConfig struct {
	Model     string `yaml:"model" env:"SUGGESTIONS_MODEL" env-default:"gemini-2.0-flash-exp"`
	MaxTokens int    `yaml:"max_tokens" env:"SUGGESTIONS_MAX_TOKENS" env-default:"2000"`
}

// StripeConfig holds payment processor settings.
type StripeConfig struct {
	SecretKey        string        `yaml:"-" env:"STRIPE_SECRET_KEY"`     // Secret - not in YAML
	WebhookSecret    string        `yaml:"-" env:"STRIPE_WEBHOOK_SECRET"` // Secret - not in YAML
	BasicPriceID     string        `yaml:"basic_price_id" env:"STRIPE_BASIC_PRICE_ID" env-default:""`
	ProPriceID       string        `yaml:"pro_price_id" env:"STRIPE_PRO_PRICE_ID" env-default:""`
	APIBaseURL       string        `yaml:"api_base_url" env:"STRIPE_API_BASE_URL" env-default:"https://api.stripe.com"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance" env:"STRIPE_WEBHOOK_TOLERANCE" env-default:"5m"`
}

// SchedulerConfig holds cron expressions for background jobs. Empty disables a job.
type SchedulerConfig struct {
	MentionAnalysisCron string `yaml:"mention_analysis_cron" env:"MENTION_ANALYSIS_CRON" env-default:""`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; defaults and environment variables apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}
	if cfg.AppURL == "" {
		cfg.AppURL = cfg.BaseURL
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")

	plans, err := LoadPlans(cfg.PlansFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan catalog: %w", err)
	}
	plans.SetPriceID("basic", cfg.Stripe.BasicPriceID)
	plans.SetPriceID("pro", cfg.Stripe.ProPriceID)
	cfg.Plans = plans

	return cfg, nil
}

// IsLocal reports whether the server runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "development"
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	if c.Mentions.Concurrency < 1 {
		return fmt.Errorf("mentions.concurrency must be at least 1, got %d", c.Mentions.Concurrency)
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if ok {
			endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		resolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port address of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", resolveHostForDocker(c.Host), c.Port)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// resolveHostForDocker maps localhost to host.docker.internal when running inside a container,
// so a containerised server can reach Postgres or Redis on the host machine.
func resolveHostForDocker(host string) string {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	if isDockerResult && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
