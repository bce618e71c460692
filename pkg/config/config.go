package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string

	// RabbitMQ. Empty means local mode with the in-process bus.
	RabbitMQURL string

	// Solver
	SolverWorkers         int
	SolverExhaustiveLimit int
	SolverSeed            int64
	SolverBudget          time.Duration
	// SolverMaxHorizonMinutes caps the planning horizon; zero keeps the
	// solver's built-in cap.
	SolverMaxHorizonMinutes int

	// Pareto
	ParetoLimit int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "auto"),
		SQLitePath:     getEnv("SQLITE_PATH", ""),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		SolverWorkers:         getIntEnv("SOLVER_WORKERS", 0),
		SolverExhaustiveLimit: getIntEnv("SOLVER_EXHAUSTIVE_LIMIT", 8),
		SolverSeed:            int64(getIntEnv("SOLVER_SEED", 1)),
		SolverBudget:          getDurationEnv("SOLVER_BUDGET", 30*time.Second),

		SolverMaxHorizonMinutes: getIntEnv("SOLVER_MAX_HORIZON_MINUTES", 0),

		ParetoLimit: getIntEnv("PARETO_LIMIT", 8),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
