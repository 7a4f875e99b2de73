package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthBackendSQLite = "sqlite"
	AuthBackendFile   = "file"
)

type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	DatabaseURL      string
	HTTPPort         string
	LogLevel         string
	LogFormat        string
	JWTSecret        string
	RedisURL         string
	AuthBackend      string
	CredentialsFile  string
	SessionTTL       time.Duration
	AnalysisCacheTTL time.Duration
	MinTextLength    int
	TrialDays        int
	MaxUploadBytes   int64
}

// LoadConfig reads .env (if present) and the process environment.
// Secrets are not checked here; see RequireSecrets.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		DatabaseURL:      getEnv("DATABASE_URL", "resume_ai.db"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "json")),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		AuthBackend:      strings.ToLower(getEnv("AUTH_BACKEND", AuthBackendSQLite)),
		CredentialsFile:  getEnv("CREDENTIALS_FILE", "config.yaml"),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		AnalysisCacheTTL: getEnvAsDuration("ANALYSIS_CACHE_TTL", 30*time.Second),
		MinTextLength:    getEnvAsInt("MIN_TEXT_LENGTH", 50),
		TrialDays:        getEnvAsInt("TRIAL_DAYS", 7),
		MaxUploadBytes:   int64(getEnvAsInt("MAX_UPLOAD_MB", 20)) << 20,
	}

	switch cfg.AuthBackend {
	case AuthBackendSQLite, AuthBackendFile:
	default:
		return nil, fmt.Errorf("unsupported AUTH_BACKEND %q (want %q or %q)", cfg.AuthBackend, AuthBackendSQLite, AuthBackendFile)
	}
	if cfg.MinTextLength < 0 {
		return nil, fmt.Errorf("MIN_TEXT_LENGTH must not be negative")
	}
	if cfg.TrialDays < 0 {
		return nil, fmt.Errorf("TRIAL_DAYS must not be negative")
	}

	return &cfg, nil
}

// RequireSecrets reports the first missing secret needed to serve traffic.
func (c *Config) RequireSecrets() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
