package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	DatabaseURL     string
	ArenaJWT        string
	ArenaPartnerKey string

	GeminiAPIKey string
	TavilyAPIKey string

	TelegramBotToken string
	TelegramChatID   string

	BotHandle string
	BotUserID string

	PollInterval     time.Duration
	MaxNotifsPerPoll int

	IngestInterval   time.Duration
	IngestBatchLimit int

	ImageQueueMax      int
	ImageSaveDir       string
	TempImageDir       string
	GladiusImagePath   string
	ImageModel         string
	ImageFallbackModel string
	ImageRetryAttempts int
	ImageRetryBase     time.Duration
}

// Load reads the environment. Only the credentials the process cannot run
// without are validated here; tunables fall back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ArenaJWT:         os.Getenv("ARENA_JWT"),
		ArenaPartnerKey:  os.Getenv("ARENA_PARTNER_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		TavilyAPIKey:     os.Getenv("TAVILY_API_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		BotHandle: getEnv("BOT_HANDLE", "arenagladius"),
		BotUserID: os.Getenv("BOT_USER_ID"),

		PollInterval:     time.Duration(getEnvInt("POLL_INTERVAL_SEC", 10)) * time.Second,
		MaxNotifsPerPoll: getEnvInt("MAX_NOTIFS_PER_POLL", 50),

		IngestInterval:   time.Duration(getEnvInt("INGEST_POLL_SEC", 10)) * time.Second,
		IngestBatchLimit: getEnvInt("INGEST_BATCH_LIMIT", 100),

		ImageQueueMax:      getEnvInt("IMG_QUEUE_MAX", 200),
		ImageSaveDir:       getEnv("AI_IMG_DIR", "./generated_images"),
		TempImageDir:       getEnv("TEMP_IMG_DIR", "./temp_images"),
		GladiusImagePath:   getEnv("GLADIUS_IMAGE_PATH", "GLADIUS.jpg"),
		ImageModel:         getEnv("GENAI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		ImageFallbackModel: getEnv("GENAI_IMAGE_MODEL_FALLBACK", "gemini-2.0-flash-exp"),
		ImageRetryAttempts: getEnvInt("GENAI_RETRY_ATTEMPTS", 3),
		ImageRetryBase:     time.Duration(getEnvFloat("GENAI_RETRY_BASE_SLEEP", 1.5) * float64(time.Second)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ArenaJWT == "" {
		return nil, fmt.Errorf("ARENA_JWT is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
