package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Hosted language model
	LanguageModelAPIKey       string
	LanguageModelName         string
	LanguageModelFallbackName string // empty disables the fallback client

	// Chat transport (webhook)
	ChatAccessToken   string
	ChatPhoneNumberID string
	ChatVerifyToken   string
	ChatAPIBase       string
	AsyncWebhook      bool // ack 202 and push the reply out of band
	DedupWindow       time.Duration

	// Document database
	DatabaseProjectID       string
	DatabaseCredentialsPath string
	AWSRegion               string
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	AWSEndpointOverride     string

	// Session and booking behaviour
	SessionIdleTimeout time.Duration
	HoldTTL            time.Duration
	DiscountPercent    float64
	HistoryLimit       int
	DefaultTimezone    string

	// Outbound call deadlines
	NLUTimeout time.Duration
	DBTimeout  time.Duration

	// Turn dispatch
	UseMemoryQueue bool
	TurnQueueURL   string
	WorkerCount    int

	// Session cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Admin surface
	AdminToken string
}

// ErrMissingConfig indicates a required configuration value is absent.
var ErrMissingConfig = errors.New("config: missing required value")

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		LanguageModelAPIKey:       getEnv("LANGUAGE_MODEL_API_KEY", ""),
		LanguageModelName:         getEnv("LANGUAGE_MODEL_NAME", "gemini-2.5-flash"),
		LanguageModelFallbackName: getEnv("LANGUAGE_MODEL_FALLBACK_NAME", "gemini-2.0-flash"),

		ChatAccessToken:   getEnv("CHAT_ACCESS_TOKEN", ""),
		ChatPhoneNumberID: getEnv("CHAT_PHONE_NUMBER_ID", ""),
		ChatVerifyToken:   getEnv("CHAT_VERIFY_TOKEN", ""),
		ChatAPIBase:       getEnv("CHAT_API_BASE", ""),
		AsyncWebhook:      getEnvAsBool("ASYNC_WEBHOOK", false),
		DedupWindow:       getEnvAsSeconds("DEDUP_WINDOW_SEC", 5*time.Minute),

		DatabaseProjectID:       getEnv("DATABASE_PROJECT_ID", "bookforme"),
		DatabaseCredentialsPath: getEnv("DATABASE_CREDENTIALS_PATH", ""),
		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:     getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SessionIdleTimeout: getEnvAsSeconds("SESSION_IDLE_TIMEOUT_SEC", 1800*time.Second),
		HoldTTL:            getEnvAsSeconds("HOLD_TTL_SEC", 120*time.Second),
		DiscountPercent:    getEnvAsFloat("DISCOUNT_PERCENT", 20),
		HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 20),
		DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", "Asia/Karachi"),

		NLUTimeout: getEnvAsSeconds("NLU_TIMEOUT_SEC", 20*time.Second),
		DBTimeout:  getEnvAsSeconds("DB_TIMEOUT_SEC", 5*time.Second),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		TurnQueueURL:   getEnv("TURN_QUEUE_URL", ""),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminToken: getEnv("ADMIN_TOKEN", ""),
	}
}

// Validate reports fatal startup misconfiguration. The process must not come
// up without model credentials or a webhook verify token.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.LanguageModelAPIKey) == "" {
		missing = append(missing, "LANGUAGE_MODEL_API_KEY")
	}
	if strings.TrimSpace(c.ChatVerifyToken) == "" {
		missing = append(missing, "CHAT_VERIFY_TOKEN")
	}
	if !c.UseMemoryQueue && strings.TrimSpace(c.TurnQueueURL) == "" {
		missing = append(missing, "TURN_QUEUE_URL")
	}
	// Async mode pushes the reply out of band, so it needs send credentials.
	if c.AsyncWebhook {
		if strings.TrimSpace(c.ChatAccessToken) == "" {
			missing = append(missing, "CHAT_ACCESS_TOKEN")
		}
		if strings.TrimSpace(c.ChatPhoneNumberID) == "" {
			missing = append(missing, "CHAT_PHONE_NUMBER_ID")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if c.DiscountPercent < 0 || c.DiscountPercent >= 100 {
		return fmt.Errorf("config: DISCOUNT_PERCENT out of range: %v", c.DiscountPercent)
	}
	return nil
}

// TableName prefixes a collection name with the configured project ID so
// multiple deployments can share one database account.
func (c *Config) TableName(collection string) string {
	return c.DatabaseProjectID + "_" + collection
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSeconds reads an integer number of seconds.
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil && value >= 0 {
		return time.Duration(value) * time.Second
	}
	return defaultValue
}
