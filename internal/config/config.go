package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(LevelForEnvironment(GetEnvWithDefault("APP_ENV", "development")))
}

// LevelForEnvironment maps APP_ENV to the default log level
func LevelForEnvironment(environment string) logrus.Level {
	switch environment {
	case "development":
		return logrus.DebugLevel
	case "production":
		return logrus.ErrorLevel
	default:
		// Default to info level for other environments
		return logrus.InfoLevel
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Environment string `json:"environment"`
	Port        int    `json:"port"`
	Host        string `json:"host"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBSSLMode  string `json:"db_sslmode"`
	DBPath     string `json:"db_path"`
	SeedData   bool   `json:"seed_data"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret          string   `json:"jwt_secret"`
	TokenTTLHours      int      `json:"token_ttl_hours"`
	OAuthClientID      string   `json:"oauth_client_id"`
	OAuthClientSecret  string   `json:"oauth_client_secret"`
	LoginRatePerMinute int      `json:"login_rate_per_minute"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`

	// API behaviour
	PageSize              int  `json:"page_size"`
	MaxPageSize           int  `json:"max_page_size"`
	RecipesPreviewLimit   int  `json:"recipes_preview_limit"`
	AllowSelfSubscription bool `json:"allow_self_subscription"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Environment: %s, Port: %d, Host: %s, DBDriver: %s, DBHost: %s, DBPort: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], DBPath: %s, LogLevel: %s, JWTSecret: [REDACTED], OAuthClientID: %s, OAuthClientSecret: [REDACTED], PageSize: %d, RecipesPreviewLimit: %d, AllowSelfSubscription: %t}",
		c.Environment, c.Port, c.Host, c.DBDriver, c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPath, c.LogLevel,
		c.OAuthClientID, c.PageSize, c.RecipesPreviewLimit, c.AllowSelfSubscription)
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// Returns an error if any environment variable is present but invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	driver := strings.ToLower(GetEnvWithDefault("DB_DRIVER", "sqlite"))
	switch driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: sqlite, postgres)", driver)
	}

	environment := GetEnvWithDefault("APP_ENV", "development")
	config := &Config{
		Environment: environment,
		Port:        port,
		Host:        GetEnvWithDefault("APP_HOST", "localhost"),

		DBDriver:   driver,
		DBHost:     GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     GetEnvWithDefault("DB_PORT", "5432"),
		DBName:     GetEnvWithDefault("DB_NAME", "foodgram"),
		DBUser:     GetEnvWithDefault("DB_USER", "foodgram"),
		DBPassword: GetEnvWithDefault("DB_PASSWORD", "password"),
		DBSSLMode:  GetEnvWithDefault("DB_SSLMODE", "disable"),
		DBPath:     GetEnvWithDefault("DB_PATH", "foodgram.sqlite"),
		SeedData:   GetEnvAsType("SEED_REFERENCE_DATA", true),

		LogLevel: GetEnvWithDefault("LOG_LEVEL", LevelForEnvironment(environment).String()),

		JWTSecret:          GetEnvWithDefault("JWT_SECRET", "secret"),
		TokenTTLHours:      GetEnvAsType("TOKEN_TTL_HOURS", 24),
		OAuthClientID:      GetEnvWithDefault("OAUTH_CLIENT_ID", "foodgram-web"),
		OAuthClientSecret:  GetEnvWithDefault("OAUTH_CLIENT_SECRET", "foodgram-web-secret"),
		LoginRatePerMinute: GetEnvAsType("LOGIN_RATE_PER_MINUTE", 20),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		PageSize:              GetEnvAsType("PAGE_SIZE", 6),
		MaxPageSize:           GetEnvAsType("MAX_PAGE_SIZE", 100),
		RecipesPreviewLimit:   GetEnvAsType("RECIPES_PREVIEW_LIMIT", 3),
		AllowSelfSubscription: GetEnvAsType("ALLOW_SELF_SUBSCRIPTION", true),
	}

	if config.PageSize <= 0 || config.MaxPageSize < config.PageSize {
		return nil, fmt.Errorf("invalid pagination settings: PAGE_SIZE=%d MAX_PAGE_SIZE=%d", config.PageSize, config.MaxPageSize)
	}
	if config.TokenTTLHours <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL_HOURS must be positive, got %d", config.TokenTTLHours)
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Level returns the configured log level, falling back to the environment default
func (c *Config) Level() logrus.Level {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		return level
	}
	return LevelForEnvironment(c.Environment)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			log.Warnf("Environment variable %s is not an integer, using default", key)
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Warnf("Environment variable %s is not a boolean, using default", key)
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
