package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Pesapal gateway configuration
	Pesapal PesapalConfig

	// Purchase configuration
	Currency           string
	StatusCacheTTL     time.Duration
	MaxTicketsPerOrder int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// PesapalConfig is passed into the gateway client at construction; nothing
// in the gateway package reads the environment.
type PesapalConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string

	// CallbackBaseURL is this deployment's public base URL. The IPN
	// endpoint and the post-payment redirect live under it.
	CallbackBaseURL string

	// IPNNotificationType is GET or POST, per the gateway's IPN contract.
	IPNNotificationType string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Pesapal
		Pesapal: PesapalConfig{
			BaseURL:             getEnv("PESAPAL_BASE_URL", "https://cybqa.pesapal.com/pesapalv3"),
			ConsumerKey:         getEnv("PESAPAL_CONSUMER_KEY", ""),
			ConsumerSecret:      getEnv("PESAPAL_CONSUMER_SECRET", ""),
			CallbackBaseURL:     getEnv("PESAPAL_CALLBACK_BASE_URL", "http://localhost:8090"),
			IPNNotificationType: getEnv("PESAPAL_IPN_TYPE", "GET"),
		},

		// Purchases
		Currency:           getEnv("TICKET_CURRENCY", "UGX"),
		StatusCacheTTL:     getEnvAsDuration("STATUS_CACHE_TTL", "15m"),
		MaxTicketsPerOrder: getEnvAsInt("MAX_TICKETS_PER_ORDER", 10),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
