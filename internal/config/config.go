package config

import (
	"chatwidget-gateway/internal/crypto"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort string
	AppEnv   string
	LogLevel string

	BackendBaseURL string
	BackendTimeout time.Duration

	SessionSecret   string
	TokenExpiration time.Duration
	SessionTTL      time.Duration
	SessionIdleTTL  time.Duration

	StoreBackend  string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EncryptionKey []byte // nil keeps payloads as plain JSON

	CORSAllowedOrigins []string
	RateLimitPerMinute int

	SlackBotToken  string
	SlackChannelID string

	BookingUser       string
	BookingCalendarID string
	BookingTimezone   string
	Greeting          string
	QuickActions      []string // nil keeps the built-in prompts
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.")
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		BackendBaseURL:     strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:8000"), "/"),
		BackendTimeout:     time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 30)) * time.Second,
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		TokenExpiration:    time.Duration(getEnvInt("SESSION_TOKEN_TTL_HOURS", 24*30)) * time.Hour,
		SessionTTL:         time.Duration(getEnvInt("SESSION_TTL_HOURS", 24*30)) * time.Hour,
		SessionIdleTTL:     time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:     getEnv("SLACK_CHANNEL_ID", ""),
		BookingUser:        getEnv("BOOKING_USER", "user"),
		BookingCalendarID:  getEnv("BOOKING_CALENDAR_ID", "primary"),
		BookingTimezone:    getEnv("BOOKING_TIMEZONE", "UTC"),
		Greeting:           getEnv("WIDGET_GREETING", ""),
		QuickActions:       splitList(getEnv("QUICK_ACTIONS", ""), "|"),
	}

	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET environment variable is not set")
	}

	if keyHex := getEnv("ENCRYPTION_KEY", ""); keyHex != "" {
		key, err := crypto.ParseHexKey(keyHex)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
		cfg.EncryptionKey = key
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
		if cfg.EncryptionKey == nil {
			return nil, errors.New("ENCRYPTION_KEY is required when STORE_BACKEND=postgres")
		}
	case StoreRedis:
		if cfg.EncryptionKey == nil {
			return nil, errors.New("ENCRYPTION_KEY is required when STORE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want memory, postgres or redis)", cfg.StoreBackend)
	}

	if _, err := time.LoadLocation(cfg.BookingTimezone); err != nil {
		return nil, fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}

	log.Printf("Loaded config: Port=%s, Env=%s, Store=%s, Backend=%s, TokenExp=%s, SessionSecret=***",
		cfg.HTTPPort, cfg.AppEnv, cfg.StoreBackend, cfg.BackendBaseURL, cfg.TokenExpiration)
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return n
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
