// Package config handles configuration loading for the board gateway.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the board gateway.
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBPath        string
	DBAutoMigrate bool

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string
	JWTExpiry time.Duration

	RequestTimeout time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string

	GraphQLPath         string
	EnablePlayground    bool
	EnableIntrospection bool
	MaxQueryDepth       int
	MaxQueryComplexity  int
	APQTTL              time.Duration

	NATSURL                 string
	ObjectBucket            string
	PublicBaseURL           string
	UploadMaxBytes          int64
	UploadCompensateOrphans bool

	UpstreamBaseURL     string
	UpstreamTimeout     time.Duration
	UpstreamMaxAttempts int
	UpstreamRateLimit   float64

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	MailFrom      string
	MailSiteURL   string
	MailAdmin     string
	MailWorkers   int
	MailQueueSize int

	BusBuffer int
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "455"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", ""),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "ajounice"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBPath:        getEnv("DB_PATH", "ajounice.db"),
		DBAutoMigrate: parseBool(getEnv("DB_AUTO_MIGRATE", "false"), false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnvRequired("JWT_SECRET"),
		JWTExpiry: parseDuration(getEnv("JWT_EXPIRY", "24h"), 24*time.Hour),

		RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "5s"), 5*time.Second),
		IdleTimeout:    parseDuration(getEnv("IDLE_TIMEOUT", "5s"), 5*time.Second),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		GraphQLPath:         getEnv("GRAPHQL_PATH", "/graphql"),
		EnablePlayground:    parseBool(getEnv("ENABLE_PLAYGROUND", "true"), true),
		EnableIntrospection: parseBool(getEnv("ENABLE_INTROSPECTION", "true"), true),
		MaxQueryDepth:       parseInt(getEnv("MAX_QUERY_DEPTH", "5"), 5),
		MaxQueryComplexity:  parseInt(getEnv("MAX_QUERY_COMPLEXITY", "800"), 800),
		APQTTL:              parseDuration(getEnv("APQ_TTL", "24h"), 24*time.Hour),

		NATSURL:                 getEnv("NATS_URL", "nats://localhost:4222"),
		ObjectBucket:            getEnv("OBJECT_BUCKET", "ajounice"),
		PublicBaseURL:           getEnv("PUBLIC_BASE_URL", "http://localhost:455"),
		UploadMaxBytes:          int64(parseInt(getEnv("UPLOAD_MAX_BYTES", "20971520"), 20<<20)),
		UploadCompensateOrphans: parseBool(getEnv("UPLOAD_COMPENSATE_ORPHANS", "false"), false),

		UpstreamBaseURL:     getEnv("UPSTREAM_BASE_URL", "http://localhost:5000"),
		UpstreamTimeout:     parseDuration(getEnv("UPSTREAM_TIMEOUT", "2s"), 2*time.Second),
		UpstreamMaxAttempts: parseInt(getEnv("UPSTREAM_MAX_ATTEMPTS", "1"), 1),
		UpstreamRateLimit:   parseFloat(getEnv("UPSTREAM_RATE_LIMIT", "20"), 20),

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      parseInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		MailFrom:      getEnv("MAIL_FROM", "no-reply@ajounice.com"),
		MailSiteURL:   getEnv("MAIL_SITE_URL", "http://localhost:8080"),
		MailAdmin:     getEnv("MAIL_ADMIN", ""),
		MailWorkers:   parseInt(getEnv("MAIL_WORKERS", "2"), 2),
		MailQueueSize: parseInt(getEnv("MAIL_QUEUE_SIZE", "100"), 100),

		BusBuffer: parseInt(getEnv("BUS_BUFFER", "16"), 16),
	}
	return cfg
}

// Validate fills zero values with defaults and rejects impossible settings.
func (c *Config) Validate() error {
	if c.Port == "" {
		c.Port = "455"
	}
	if c.GraphQLPath == "" {
		c.GraphQLPath = "/graphql"
	}
	if !strings.HasPrefix(c.GraphQLPath, "/") {
		return errors.New("graphql path must start with /")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DBDriver)
	}
	if len(c.JWTSecret) < 8 {
		return errors.New("jwt secret must be at least 8 bytes")
	}
	if c.RequestTimeout < 100*time.Millisecond || c.RequestTimeout > 5*time.Minute {
		return errors.New("request timeout must be between 100ms and 5m")
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Second
	}
	if c.MaxQueryDepth < 1 || c.MaxQueryDepth > 50 {
		return errors.New("max query depth must be between 1 and 50")
	}
	if c.MaxQueryComplexity <= 0 {
		c.MaxQueryComplexity = 800
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = 20 << 20
	}
	if c.UpstreamMaxAttempts < 1 {
		c.UpstreamMaxAttempts = 1
	}
	if c.MailWorkers < 1 {
		c.MailWorkers = 1
	}
	if c.MailAdmin == "" {
		c.MailAdmin = c.MailFrom
	}
	if c.BusBuffer < 1 {
		c.BusBuffer = 16
	}
	c.PublicBaseURL = strings.TrimSuffix(c.PublicBaseURL, "/")
	c.UpstreamBaseURL = strings.TrimSuffix(c.UpstreamBaseURL, "/")
	return nil
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("required environment variable %s is not set", key)
	}
	return value
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func parseInt(value string, defaultValue int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func parseFloat(value string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func parseBool(value string, defaultValue bool) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
