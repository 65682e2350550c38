package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Addr string
	DB   int
}

// DistanceConfig points at the external travel-time estimation service.
// A zero BaseURL disables the client; the route optimizer then always uses
// its bounded-random fallback.
type DistanceConfig struct {
	BaseURL     string
	DefaultMode string
	Timeout     time.Duration
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

type Config struct {
	Repositories RepositoriesConfig
	Distance     DistanceConfig
	ServerPort   string
	MetricsPort  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5454"),
				DB:       getEnvOrDefault("POSTGRES_DB", "loci_discovery"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
			Redis: RedisConfig{
				Addr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
				DB:   getEnvIntOrDefault("REDIS_DB", 0),
			},
		},
		Distance: DistanceConfig{
			BaseURL:     os.Getenv("DISTANCE_SERVICE_URL"),
			DefaultMode: getEnvOrDefault("DISTANCE_DEFAULT_MODE", "walking"),
			Timeout:     time.Duration(getEnvIntOrDefault("DISTANCE_TIMEOUT_SECONDS", 3)) * time.Second,
		},
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8091"),
		MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
