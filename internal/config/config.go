package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StorageFile     StorageBackend = "file"
	StoragePostgres StorageBackend = "postgres"
)

type Config struct {
	// LLM settings
	LLMProvider       LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey      string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string      `env:"OPENAI_BASE_URL"`
	OpenAIModel       string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITemperature float32     `env:"OPENAI_TEMPERATURE" envDefault:"0.3"`
	YandexOAuthToken  string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID    string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Classification
	HistoryWindow     int           `env:"HISTORY_WINDOW" envDefault:"20"`
	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT" envDefault:"30s"`
	ClassifyCacheSize int           `env:"CLASSIFY_CACHE_SIZE" envDefault:"256"`
	Timezone          string        `env:"TIMEZONE" envDefault:"UTC"`

	// Storage
	StorageBackend  StorageBackend `env:"STORAGE_BACKEND" envDefault:"memory"`
	StorageFilePath string         `env:"STORAGE_FILE_PATH" envDefault:"data/planner.jsonl"`
	DatabaseURL     string         `env:"DATABASE_URL"`

	// Telegram
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	DigestCron       string `env:"DIGEST_CRON" envDefault:"0 7 * * *"`

	// Google Calendar export (optional)
	CalendarCredentialsPath string `env:"GOOGLE_CALENDAR_CREDENTIALS_PATH"`
	CalendarTokenPath       string `env:"GOOGLE_CALENDAR_TOKEN_PATH" envDefault:"data/calendar_token.json"`
	CalendarRefreshToken    string `env:"GOOGLE_CALENDAR_REFRESH_TOKEN"`
	CalendarID              string `env:"GOOGLE_CALENDAR_ID" envDefault:"primary"`
}

// Load parses the environment and validates cross-field settings.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageFile:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive, got %d", c.HistoryWindow)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CalendarEnabled reports whether event export to Google Calendar is configured.
func (c *Config) CalendarEnabled() bool {
	return c.CalendarCredentialsPath != ""
}
