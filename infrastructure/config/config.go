package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence. An empty DatabasePath selects the in-memory seed
	// repository instead of SQLite.
	DatabasePath string

	// Graph behavior
	AllowedNodeType string
	EnableMultiType bool
	SearchLimit     int

	// Market data validator
	MarketBaseURL    string
	MarketTimeoutMS  int
	MarketMaxRetries int

	// Authentication
	JWTSecret            string
	JWTIssuer            string
	RequireAuthForWrites bool

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		DatabasePath: getEnv("DATABASE_PATH", ""),

		AllowedNodeType: getEnv("ALLOWED_NODE_TYPE", "company"),
		EnableMultiType: getEnvBool("ENABLE_MULTI_TYPE", false),
		SearchLimit:     getEnvInt("SEARCH_LIMIT", 5),

		MarketBaseURL:    getEnv("MARKET_BASE_URL", ""),
		MarketTimeoutMS:  getEnvInt("MARKET_TIMEOUT_MS", 5000),
		MarketMaxRetries: getEnvInt("MARKET_MAX_RETRIES", 2),

		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTIssuer:            getEnv("JWT_ISSUER", ""),
		RequireAuthForWrites: getEnvBool("REQUIRE_AUTH_FOR_WRITES", true),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive")
	}
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
