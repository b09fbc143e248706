package config

import (
	"os"
)

type Config struct {
	HTTPAddr          string
	DatabaseURL       string
	RedisAddr         string
	KafkaBrokers      string
	NotificationTopic string
	JWTSecret         string
	ServiceName       string
	InstanceID        string
	UploadDir         string
	UploadBaseURL     string
	MetricsEnabled    bool
	TracingEnabled    bool
	JaegerURL         string
	RateLimitRequests int
	RateLimitWindow   string
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       mustEnv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		NotificationTopic: getEnv("NOTIFICATION_TOPIC", "messaging.notification.events"),
		JWTSecret:         mustEnv("JWT_SECRET"),
		ServiceName:       getEnv("SERVICE_NAME", "messaging"),
		InstanceID:        getEnv("INSTANCE_ID", "messaging-1"),
		UploadDir:         getEnv("UPLOAD_DIR", "/var/lib/messaging/uploads"),
		UploadBaseURL:     getEnv("UPLOAD_BASE_URL", "/uploads"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		TracingEnabled:    getEnvBool("TRACING_ENABLED", false),
		JaegerURL:         getEnv("JAEGER_URL", ""),
		RateLimitRequests: 300,
		RateLimitWindow:   getEnv("RATE_LIMIT_WINDOW", "1m"),
	}
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing required env: " + k)
	}
	return v
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
