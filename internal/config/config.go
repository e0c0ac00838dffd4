package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Telegram
	TelegramToken string
	OwnerID       string // Telegram user id of the bot owner

	// Completion providers, unset keys are skipped
	OpenAIKey string
	ClaudeKey string
	GeminiKey string

	// Storage
	StoreDriver string // "sqlite" or "postgres"
	SQLitePath  string
	DatabaseURL string

	// Ledger
	StartingBalance int64
	DailyCap        int64
	LedgerLocation  *time.Location

	// Scheduler and sends
	SchedulerTick         time.Duration
	SchedulerInitialDelay time.Duration
	SendInterval          time.Duration

	// Upper bound on any single provider attempt, zero means none
	CompletionTimeoutCap time.Duration

	// HTTP admin API
	Port              string
	AdminPasswordHash string
	JWTSecret         string

	AIEnabled bool

	// Optional ad appended after each answer
	AnswerAdText    string
	AnswerAdImage   string
	AnswerAdCaption string

	AppLink     string
	ChannelLink string

	LogLevel    string
	Environment string // "development", "production" or "test"
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}
	return load()
}

func load() (*Config, error) {
	config := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OwnerID:       strings.TrimSpace(os.Getenv("OWNER_USER_ID")),

		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		ClaudeKey: os.Getenv("CLAUDE_API_KEY"),
		GeminiKey: os.Getenv("GEMINI_API_KEY"),

		StoreDriver: strings.ToLower(getEnvWithDefault("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnvWithDefault("SQLITE_PATH", "data/novabot.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		Port:              getEnvWithDefault("PORT", "8080"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),

		AnswerAdText:    os.Getenv("ANSWER_AD_TEXT"),
		AnswerAdImage:   os.Getenv("ANSWER_AD_IMAGE"),
		AnswerAdCaption: os.Getenv("ANSWER_AD_CAPTION"),

		AppLink:     os.Getenv("APP_LINK"),
		ChannelLink: os.Getenv("CHANNEL_LINK"),

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	var err error
	if config.StartingBalance, err = getInt("STARTING_BALANCE", 10); err != nil {
		return nil, err
	}
	if config.DailyCap, err = getInt("DAILY_CAP", 2); err != nil {
		return nil, err
	}
	if config.SchedulerTick, err = getDuration("SCHEDULER_TICK", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.SchedulerInitialDelay, err = getDuration("SCHEDULER_INITIAL_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if config.SendInterval, err = getDuration("SEND_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if config.CompletionTimeoutCap, err = getDuration("COMPLETION_TIMEOUT_CAP", 0); err != nil {
		return nil, err
	}
	if config.AIEnabled, err = getBool("AI_ENABLED", true); err != nil {
		return nil, err
	}

	config.LedgerLocation, err = time.LoadLocation(getEnvWithDefault("LEDGER_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_TIMEZONE: %w", err)
	}

	if config.DailyCap < 1 {
		return nil, fmt.Errorf("DAILY_CAP must be at least 1")
	}
	if config.StartingBalance < 0 {
		return nil, fmt.Errorf("STARTING_BALANCE cannot be negative")
	}
	if config.SchedulerTick <= 0 {
		return nil, fmt.Errorf("SCHEDULER_TICK must be positive")
	}
	if config.CompletionTimeoutCap < 0 {
		return nil, fmt.Errorf("COMPLETION_TIMEOUT_CAP cannot be negative")
	}

	switch config.StoreDriver {
	case "sqlite":
	case "postgres":
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", config.StoreDriver)
	}

	if config.Environment != "test" && config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if config.AdminPasswordHash != "" && config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}

	return config, nil
}

// AdminEnabled reports whether the HTTP admin API accepts logins.
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.OwnerID != ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// SetupLogging configures the global logrus logger.
func SetupLogging(c *Config) {
	if c.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
