package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret signs tokens when JWT_SECRET is unset. Development only.
const DefaultJWTSecret = "dev-secret-change-me"

type DBConfig struct {
	Driver string // "sqlite" or "postgres"
	Path   string // SQLite file, used when Driver is sqlite
	URL    string // Postgres DSN, used when Driver is postgres
}

type AppConfig struct {
	HTTPAddr  string
	DB        DBConfig
	JWTSecret string
	TokenTTL  time.Duration

	// RedisAddr enables the shared token revocation list. Empty keeps
	// revocations in memory.
	RedisAddr string
	RedisPass string

	CORSOrigins     []string
	PasscodeRetries int
	LogLevel        string
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DB: DBConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:   getEnv("DB_PATH", "./data/circles.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		JWTSecret:       getEnv("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPass:       getEnv("REDIS_PASS", ""),
		CORSOrigins:     getEnvSlice("CORS_ORIGINS", []string{"*"}),
		PasscodeRetries: getEnvInt("PASSCODE_RETRIES", 5),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// InsecureJWTSecret reports whether tokens are signed with DefaultJWTSecret.
func (c AppConfig) InsecureJWTSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}
