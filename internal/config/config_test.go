package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"GEMINI_API_KEY", "GEMINI_MODEL", "DATABASE_URL", "HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT",
		"JWT_SECRET", "REDIS_URL", "AUTH_BACKEND", "CREDENTIALS_FILE", "SESSION_TTL",
		"ANALYSIS_CACHE_TTL", "MIN_TEXT_LENGTH", "TRIAL_DAYS", "MAX_UPLOAD_MB",
	} {
		t.Setenv(key, "")
	}
	// LookupEnv treats "" as set, so string settings get their defaults spelled out.
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")
	t.Setenv("DATABASE_URL", "resume_ai.db")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("AUTH_BACKEND", "sqlite")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.AnalysisCacheTTL != 30*time.Second {
		t.Errorf("AnalysisCacheTTL = %v, want 30s", cfg.AnalysisCacheTTL)
	}
	if cfg.MinTextLength != 50 {
		t.Errorf("MinTextLength = %d, want 50", cfg.MinTextLength)
	}
	if cfg.TrialDays != 7 {
		t.Errorf("TrialDays = %d, want 7", cfg.TrialDays)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 20<<20)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AUTH_BACKEND", "FILE")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ANALYSIS_CACHE_TTL", "5s")
	t.Setenv("MIN_TEXT_LENGTH", "100")
	t.Setenv("MAX_UPLOAD_MB", "1")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AuthBackend != AuthBackendFile {
		t.Errorf("AuthBackend = %q, want %q", cfg.AuthBackend, AuthBackendFile)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.AnalysisCacheTTL != 5*time.Second {
		t.Errorf("AnalysisCacheTTL = %v", cfg.AnalysisCacheTTL)
	}
	if cfg.MinTextLength != 100 {
		t.Errorf("MinTextLength = %d", cfg.MinTextLength)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestLoadConfig_InvalidBackend(t *testing.T) {
	t.Setenv("AUTH_BACKEND", "ldap")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported auth backend")
	}
}

func TestRequireSecrets(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"both set", Config{GeminiAPIKey: "k", JWTSecret: "s"}, false},
		{"missing gemini key", Config{JWTSecret: "s"}, true},
		{"missing jwt secret", Config{GeminiAPIKey: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.RequireSecrets()
			if (err != nil) != tt.wantErr {
				t.Errorf("RequireSecrets() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
