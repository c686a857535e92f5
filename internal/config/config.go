package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// HighLevel calendar/CRM platform
	HighLevelBaseURL      string
	HighLevelTokenURL     string
	HighLevelClientID     string
	HighLevelClientSecret string
	HighLevelTimeout      time.Duration

	// Voice agent tool endpoints
	ToolSharedSecret string

	// Availability search tuning
	ScheduleCacheTTL    time.Duration
	SlotLeadTime        time.Duration
	DefaultSearchDays   int
	PackageSearchDays   int
	MaxPreviewPlans     int
	AvailabilityResults int
	RequestedTimeCap    int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		HighLevelBaseURL:      getEnv("HIGHLEVEL_BASE_URL", "https://services.leadconnectorhq.com"),
		HighLevelTokenURL:     getEnv("HIGHLEVEL_TOKEN_URL", "https://services.leadconnectorhq.com/oauth/token"),
		HighLevelClientID:     getEnv("HIGHLEVEL_CLIENT_ID", ""),
		HighLevelClientSecret: getEnv("HIGHLEVEL_CLIENT_SECRET", ""),
		HighLevelTimeout:      getEnvAsDuration("HIGHLEVEL_TIMEOUT", 10*time.Second),

		ToolSharedSecret: getEnv("TOOL_SHARED_SECRET", ""),

		ScheduleCacheTTL:    getEnvAsDuration("SCHEDULE_CACHE_TTL", time.Hour),
		SlotLeadTime:        getEnvAsDuration("SLOT_LEAD_TIME", 15*time.Minute),
		DefaultSearchDays:   getEnvAsInt("DEFAULT_SEARCH_DAYS", 7),
		PackageSearchDays:   getEnvAsInt("PACKAGE_SEARCH_DAYS", 14),
		MaxPreviewPlans:     getEnvAsInt("MAX_PREVIEW_PLANS", 3),
		AvailabilityResults: getEnvAsInt("AVAILABILITY_RESULTS", 3),
		RequestedTimeCap:    getEnvAsInt("REQUESTED_TIME_CAP", 5),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
