package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	Directory  DirectoryConfig
	Authz      AuthzConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for the EventStoreDB event bus.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
	// Enabled controls whether events are published at all
	Enabled bool
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// DirectoryConfig holds connection settings for the legacy staff directory,
// the read-only identity source for users and the org hierarchy. The
// directory lives on the operator's SQL Server instance.
type DirectoryConfig struct {
	DSN     string
	Enabled bool
}

// AuthzConfig tunes the authorization engine itself.
type AuthzConfig struct {
	// AuditMaxEntries caps the audit trail; oldest entries are evicted first
	AuditMaxEntries int
	// SweepInterval is the period of the background grant-expiry sweep
	SweepInterval time.Duration
	// Regions is the full region universe administrators implicitly hold
	Regions []string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "telegis"),
			Password: getEnv("DB_PASSWORD", "telegis"),
			Database: getEnv("DB_NAME", "telegis"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
			Enabled:  getEnvBool("EVENTSTORE_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", "telegis-console"),
		},
		Directory: DirectoryConfig{
			DSN:     getEnv("DIRECTORY_DSN", ""),
			Enabled: getEnvBool("DIRECTORY_ENABLED", false),
		},
		Authz: AuthzConfig{
			AuditMaxEntries: getEnvInt("AUDIT_MAX_ENTRIES", 10000),
			SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
			Regions:         getEnvSlice("AUTHZ_REGIONS", nil),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
