package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./identity.db)
	PepperFile   string // Optional: path to the password pepper file, created on first start (default: ./pepper)
	TokenSecret  string // Required outside dev: HMAC secret for verification and reset tokens
	Issuer       string // Optional: issuer claim of action tokens (default: clubhouse-identity)

	SessionTTL        time.Duration // Session lifetime (default: 24h)
	VerifyTTL         time.Duration // Email verification token lifetime (default: 48h)
	ResetTTL          time.Duration // Password reset token lifetime (default: 1h)
	MinPasswordLength int           // Minimum password length (default: 8)
	ExposeTokens      bool          // Return verification and reset tokens in responses (default: true in dev)

	BootstrapEmail    string // Optional: email of the super_admin created on an empty database
	BootstrapPassword string // Optional: password of that super_admin

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	RateLimits httpx.RateLimits // RATELIMIT_STRICT/MODERATE/LENIENT, e.g. "5/1m"
}

// LoadConfig reads the configuration from the environment. A .env file in
// the working directory is loaded first when present; real environment
// variables win.
func LoadConfig() Config {
	_ = godotenv.Load()

	env := getEnvOrDefault("ENV", "dev")
	cfg := Config{
		DatabaseFile: getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		PepperFile:   getEnvOrDefault("IDENTITY_PEPPER_FILE", "pepper"),
		TokenSecret:  os.Getenv("IDENTITY_TOKEN_SECRET"),
		Issuer:       getEnvOrDefault("IDENTITY_ISSUER", "clubhouse-identity"),

		SessionTTL:        getEnvDurationOrDefault("IDENTITY_SESSION_TTL", 24*time.Hour),
		VerifyTTL:         getEnvDurationOrDefault("IDENTITY_VERIFY_TTL", 48*time.Hour),
		ResetTTL:          getEnvDurationOrDefault("IDENTITY_RESET_TTL", time.Hour),
		MinPasswordLength: getEnvIntOrDefault("IDENTITY_MIN_PASSWORD", 8),
		ExposeTokens:      getEnvBoolOrDefault("IDENTITY_EXPOSE_TOKENS", env == "dev"),

		BootstrapEmail:    os.Getenv("IDENTITY_BOOTSTRAP_EMAIL"),
		BootstrapPassword: os.Getenv("IDENTITY_BOOTSTRAP_PASSWORD"),

		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		RateLimits: httpx.RateLimitsFromEnv(os.Getenv),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
