package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Auth     AuthConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Use HTTPS-only cookies
	Debug       bool   // Enable debug logging
	Environment string // "development", "production", "test"
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type EmailConfig struct {
	Provider     string // "resend", "smtp", "console"
	FromAddress  string
	FromName     string
	BaseURL      string // Application base URL for links
	ResendAPIKey string
	// SMTP settings (for Mailpit in local dev)
	SMTPHost string
	SMTPPort int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// SessionCheckTimeout bounds the session lookup behind GET /api/auth/session.
	SessionCheckTimeout time.Duration
	// RateLimit is the number of auth attempts allowed per client per minute.
	RateLimit int64
}

type StorageConfig struct {
	Dir       string
	PublicURL string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Secure:      getEnvBool("SERVER_SECURE", false),
			Debug:       getEnvBool("DEBUG", false),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "roots"),
			Password: getEnv("DB_PASSWORD", "roots"),
			DBName:   getEnv("DB_NAME", "roots"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "console"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@roots.garden"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Roots"),
			BaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("AUTH_JWT_SECRET", ""),
			TokenTTL:            getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
			SessionCheckTimeout: getEnvDuration("AUTH_SESSION_CHECK_TIMEOUT", 5*time.Second),
			RateLimit:           int64(getEnvInt("AUTH_RATE_LIMIT", 10)),
		},
		Storage: StorageConfig{
			Dir:       getEnv("STORAGE_DIR", "data/uploads"),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", "/uploads"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		if !cfg.Server.IsDevelopment() && cfg.Server.Environment != "test" {
			return nil, fmt.Errorf("AUTH_JWT_SECRET is required in %s", cfg.Server.Environment)
		}
		cfg.Auth.JWTSecret = "roots-development-secret"
	}
	if cfg.Auth.SessionCheckTimeout <= 0 {
		return nil, fmt.Errorf("AUTH_SESSION_CHECK_TIMEOUT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
