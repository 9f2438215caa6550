package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds all configuration for the bulk inventory service
type Config struct {
	// Server
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	MaxUploadBytes int64

	// Database (shop sessions)
	DBEnabled  bool
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// SessionAPIKey is the shared secret the install flow sends to the
	// session routes; they are not mounted without it
	SessionAPIKey string

	// GCP
	GCPProjectID        string
	UseGCPSecretManager bool

	// Events
	NATSURL string

	// Shopify Admin API
	ShopifyAPIVersion string
	ShopifyRateLimit  float64 // requests per second
	ShopifyTimeout    time.Duration
	ShopifyMaxRetries int
	ShopifyPageSize   int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", ""),
		AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"https://admin.shopify.com"}),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_SIZE_MB", 10)) << 20,

		DBEnabled:  getEnvAsBool("DB_ENABLED", true),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvAsInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "bulk_inventory_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SessionAPIKey: getEnv("SESSION_API_KEY", ""),

		GCPProjectID:        getEnv("GCP_PROJECT_ID", ""),
		UseGCPSecretManager: getEnvAsBool("USE_GCP_SECRET_MANAGER", false),

		NATSURL: getEnv("NATS_URL", ""),

		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2024-07"),
		ShopifyRateLimit:  getEnvAsFloat("SHOPIFY_RATE_LIMIT", 2),
		ShopifyTimeout:    getEnvAsDuration("SHOPIFY_TIMEOUT", 30*time.Second),
		ShopifyMaxRetries: getEnvAsInt("SHOPIFY_MAX_RETRIES", 3),
		ShopifyPageSize:   getEnvAsInt("SHOPIFY_PAGE_SIZE", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.UseGCPSecretManager && c.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required when USE_GCP_SECRET_MANAGER is set")
	}
	if !c.DBEnabled && !c.UseGCPSecretManager {
		return fmt.Errorf("no credential source configured: enable DB_ENABLED or USE_GCP_SECRET_MANAGER")
	}
	if c.IsProduction() && c.DBEnabled && c.SessionAPIKey == "" {
		return fmt.Errorf("SESSION_API_KEY is required in production when DB_ENABLED is set")
	}
	if c.ShopifyPageSize <= 0 || c.ShopifyPageSize > 250 {
		return fmt.Errorf("SHOPIFY_PAGE_SIZE must be between 1 and 250, got %d", c.ShopifyPageSize)
	}
	if c.ShopifyRateLimit <= 0 {
		return fmt.Errorf("SHOPIFY_RATE_LIMIT must be positive")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must list at least one origin")
	}
	for _, origin := range c.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "https://") && !strings.HasPrefix(origin, "http://") {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS entry %q must start with http:// or https://", origin)
		}
		if strings.Count(origin, "*") > 1 {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS entry %q has more than one wildcard", origin)
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// InitDB opens the session database
func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvAsSlice splits a comma-separated variable
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
