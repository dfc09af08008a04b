package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"postgres"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"3000"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Geocoding Config
	GoogleMapsAPIKey string        `env:"GOOGLE_MAPS_API_KEY"`
	GeocodeBaseURL   string        `env:"GEOCODE_BASE_URL"`
	GeocodeLanguage  string        `env:"GEOCODE_LANGUAGE" envDefault:"pt-BR"`
	GeocodeTimeout   time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`

	// Push Config
	ExpoHost        string        `env:"EXPO_HOST"`
	ExpoAccessToken string        `env:"EXPO_ACCESS_TOKEN"`
	PushTimeout     time.Duration `env:"PUSH_TIMEOUT" envDefault:"10s"`
	PushChunkSize   int           `env:"PUSH_CHUNK_SIZE" envDefault:"100"`

	// Токены врачей, которые регистрируются при старте
	ResponderTokens []string `env:"RESPONDER_TOKENS"`

	// Reminder Config
	ReminderSchedule string        `env:"REMINDER_SCHEDULE" envDefault:"@every 1m"`
	ReminderAfter    time.Duration `env:"REMINDER_AFTER" envDefault:"2m"`
	// Сколько раз напоминать об одной заявке
	ReminderMax int `env:"REMINDER_MAX" envDefault:"3"`

	// Лимит на создание заявок, формат ulule/limiter ("30-M")
	RateLimit string `env:"RATE_LIMIT" envDefault:"30-M"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:          getEnv("HTTP_PORT", "3000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:    getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries: getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:  getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocodeBaseURL:    os.Getenv("GEOCODE_BASE_URL"),
		GeocodeLanguage:   getEnv("GEOCODE_LANGUAGE", "pt-BR"),
		GeocodeTimeout:    getEnvAsDuration("GEOCODE_TIMEOUT", 5*time.Second),
		ExpoHost:          os.Getenv("EXPO_HOST"),
		ExpoAccessToken:   os.Getenv("EXPO_ACCESS_TOKEN"),
		PushTimeout:       getEnvAsDuration("PUSH_TIMEOUT", 10*time.Second),
		PushChunkSize:     getEnvAsInt("PUSH_CHUNK_SIZE", 100),
		ResponderTokens:   getEnvAsList("RESPONDER_TOKENS"),
		ReminderSchedule:  getEnv("REMINDER_SCHEDULE", "@every 1m"),
		ReminderAfter:     getEnvAsDuration("REMINDER_AFTER", 2*time.Minute),
		ReminderMax:       getEnvAsInt("REMINDER_MAX", 3),
		RateLimit:         getEnv("RATE_LIMIT", "30-M"),
		APIKeys:           getEnvAsList("API_KEYS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	// Expo принимает не более 100 сообщений за один запрос
	if c.PushChunkSize < 1 || c.PushChunkSize > 100 {
		return fmt.Errorf("PUSH_CHUNK_SIZE must be between 1 and 100, got %d", c.PushChunkSize)
	}
	if c.ReminderMax < 0 {
		return fmt.Errorf("REMINDER_MAX must not be negative, got %d", c.ReminderMax)
	}
	if c.WebhookMaxRetries < 1 {
		return fmt.Errorf("WEBHOOK_MAX_RETRIES must be positive, got %d", c.WebhookMaxRetries)
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список значений, разделенных запятыми
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
