// Package config provides configuration loading and management for the ReviewFlix service.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// In development, it loads .env and .env.local files if they exist.
// In production, it relies solely on system environment variables.
// The loading order ensures that system environment variables take precedence over .env files.
func init() {
	// godotenv.Load() does not override already-set environment variables,
	// preserving OS env > .env precedence

	// Load .env file if it exists (for shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (for local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the ReviewFlix service.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // Database connection string (PostgreSQL); empty selects in-memory storage
	NATSURL     string // NATS server URL for event publishing
	SeedFile    string // Path to a catalog seed file (JSON); empty uses the built-in catalog

	// S3-compatible poster/avatar storage (optional)
	S3Endpoint  string // S3 endpoint
	S3Region    string // S3 region
	S3Bucket    string // S3 bucket name
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key

	// Session credentials
	JWTSecret   string        // HMAC signing secret for session tokens
	JWTIssuer   string        // Issuer claim for session tokens
	JWTAudience string        // Audience claim for session tokens
	SessionTTL  time.Duration // How long an issued session credential stays valid

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort        = "8080"
	defaultEnv         = "dev"
	defaultS3Region    = "us-east-1"
	defaultJWTIssuer   = "reviewflix"
	defaultJWTAudience = "reviewflix-clients"
	defaultSessionTTL  = 24 * time.Hour
)

// Load reads environment variables and produces a Config suitable for wiring the service.
// It handles both required and optional configuration parameters, providing defaults
// where appropriate. Returns an error if required parameters are missing or invalid.
func Load() (Config, error) {
	cfg := Config{}

	cfg.Env = getEnv("RVW_ENV", defaultEnv)
	cfg.Port = getEnv("RVW_PORT", defaultPort)
	cfg.DatabaseDSN = os.Getenv("RVW_DB_DSN")
	cfg.NATSURL = os.Getenv("RVW_NATS_URL")
	cfg.SeedFile = os.Getenv("RVW_SEED_FILE")

	cfg.S3Endpoint = os.Getenv("RVW_S3_ENDPOINT")
	cfg.S3Region = getEnv("RVW_S3_REGION", defaultS3Region)
	cfg.S3Bucket = os.Getenv("RVW_S3_BUCKET")
	cfg.S3AccessKey = os.Getenv("RVW_S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("RVW_S3_SECRET_KEY")

	cfg.JWTSecret = os.Getenv("RVW_JWT_SECRET")
	cfg.JWTIssuer = getEnv("RVW_JWT_ISSUER", defaultJWTIssuer)
	cfg.JWTAudience = getEnv("RVW_JWT_AUDIENCE", defaultJWTAudience)

	cfg.SessionTTL = defaultSessionTTL
	if ttlStr, exists := os.LookupEnv("RVW_SESSION_TTL"); exists {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid RVW_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return cfg, fmt.Errorf("RVW_SESSION_TTL must be positive")
		}
		cfg.SessionTTL = ttl
	}

	if corsOrigins, exists := os.LookupEnv("RVW_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		for i, origin := range cfg.CORSAllowedOrigins {
			cfg.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	// A signing secret is mandatory outside dev; dev falls back to a fixed
	// secret so the service can run with zero configuration.
	if cfg.JWTSecret == "" {
		if cfg.Env != "dev" {
			return cfg, fmt.Errorf("RVW_JWT_SECRET is required when RVW_ENV is %q", cfg.Env)
		}
		cfg.JWTSecret = "reviewflix-dev-secret"
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}
