package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for veracity-engine. Values load from
// config.yaml; environment variables override any field that declares an
// env tag. Secrets (PGPASSWORD, AI_API_KEY) are env-only and never live
// in the file.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // derived from Port when empty
	Version  string `yaml:"-"`                                      // injected at build time

	// TLS key pair. Optional; setting both paths switches the server to HTTPS.
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// CORSAllowedOrigins lists origins allowed to call the API from a
	// browser. "*" allows any origin.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Upload limits for dataset ingestion
	Upload UploadConfig `yaml:"upload"`

	// AI advisory endpoint configuration
	AI AIConfig `yaml:"ai"`

	// Retention policy for stored quality profiles
	Retention RetentionConfig `yaml:"retention"`

	// RateLimit guards the HTTP API against abusive clients
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DatabaseConfig holds PostgreSQL connection settings. The env names match
// the libpq conventions so standard tooling picks them up too.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"veracity"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // secret, env-only
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"veracity_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// UploadConfig holds dataset upload limits and storage location.
type UploadConfig struct {
	// Dir is where accepted CSV files are stored on disk.
	Dir string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	// MaxSizeBytes caps the size of a single uploaded file.
	MaxSizeBytes int64 `yaml:"max_size_bytes" env:"UPLOAD_MAX_SIZE_BYTES" env-default:"104857600"`
	// MaxRows caps the number of data rows in an uploaded file.
	MaxRows int `yaml:"max_rows" env:"UPLOAD_MAX_ROWS" env-default:"1000000"`
	// MaxColumns caps the number of columns in an uploaded file.
	MaxColumns int `yaml:"max_columns" env:"UPLOAD_MAX_COLUMNS" env-default:"500"`
}

// AIConfig holds settings for the LLM-backed quality advisor.
// The endpoint is OpenAI-compatible (Groq by default).
type AIConfig struct {
	BaseURL string `yaml:"base_url" env:"AI_BASE_URL" env-default:"https://api.groq.com/openai/v1"`
	Model   string `yaml:"model" env:"AI_MODEL" env-default:"llama-3.3-70b-versatile"`
	APIKey  string `yaml:"-" env:"AI_API_KEY"` // secret, env-only
}

// IsAvailable returns true if the AI advisor is configured.
func (c *AIConfig) IsAvailable() bool {
	return c.APIKey != ""
}

// RetentionConfig controls pruning of historical quality profiles.
type RetentionConfig struct {
	// KeepProfiles is how many profiles to retain per dataset (newest first).
	KeepProfiles int `yaml:"keep_profiles" env:"RETENTION_KEEP_PROFILES" env-default:"10"`
	// Schedule is a cron expression for the pruning job.
	Schedule string `yaml:"schedule" env:"RETENTION_SCHEDULE" env-default:"0 3 * * *"`
}

// RateLimitConfig holds per-client HTTP rate limiting settings. The global
// bucket covers every route; the per-minute limits additionally guard the
// expensive ones (file uploads, validation runs, security screening).
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS" env-default:"10"`
	Burst             int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
	UploadsPerMinute  int     `yaml:"uploads_per_minute" env:"RATE_LIMIT_UPLOADS_PER_MINUTE" env-default:"10"`
	ChecksPerMinute   int     `yaml:"checks_per_minute" env:"RATE_LIMIT_CHECKS_PER_MINUTE" env-default:"20"`
}

// Load reads config.yaml from the working directory, applies environment
// overrides, and validates the result. The version string comes from the
// build, never from the file.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateLimits(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Without an explicit base URL, advertise the local listen address,
	// https when a TLS pair is configured.
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

	return cfg, nil
}

// validateTLS rejects a half-configured TLS pair and bad paths. Actual
// readability of the pair is checked by tls.LoadX509KeyPair when the
// listener starts.
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

// validateLimits rejects nonsensical upload and retention settings early,
// before a misconfigured server starts accepting files.
func (c *Config) validateLimits() error {
	if c.Upload.MaxSizeBytes <= 0 {
		return fmt.Errorf("upload.max_size_bytes must be positive, got %d", c.Upload.MaxSizeBytes)
	}
	if c.Upload.MaxRows <= 0 {
		return fmt.Errorf("upload.max_rows must be positive, got %d", c.Upload.MaxRows)
	}
	if c.Upload.MaxColumns <= 0 {
		return fmt.Errorf("upload.max_columns must be positive, got %d", c.Upload.MaxColumns)
	}
	if c.Retention.KeepProfiles < 1 {
		return fmt.Errorf("retention.keep_profiles must be at least 1, got %d", c.Retention.KeepProfiles)
	}
	if c.RateLimit.UploadsPerMinute < 1 {
		return fmt.Errorf("rate_limit.uploads_per_minute must be at least 1, got %d", c.RateLimit.UploadsPerMinute)
	}
	if c.RateLimit.ChecksPerMinute < 1 {
		return fmt.Errorf("rate_limit.checks_per_minute must be at least 1, got %d", c.RateLimit.ChecksPerMinute)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
