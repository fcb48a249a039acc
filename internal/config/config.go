// Package config loads daemon configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for costwise.
type Config struct {
	Port   string
	DBPath string

	BudgetPerCall float64
	DailyBudget   float64

	QualityEnabled    bool
	QualityThreshold  int
	QualityMaxRetries int
	JudgeModel        string
	JudgeTaskLimit    int
	JudgeOutputLimit  int

	PromptMaxTokens int

	RoutingMode    string
	RouterProvider string
	CatalogPath    string

	ProviderTimeout time.Duration

	LogLevel string
	LogJSON  bool

	APIKeyHash string

	TelegramToken  string
	TelegramChatID int64

	WebhookURLs []string

	RetentionDays int
	RetentionCron string
	DigestCron    string
}

// Load reads the optional .env file, then environment variables, and
// returns a Config. Every field has a sensible default.
func Load(envFile string) *Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	return &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("TASK_LOG_DB_PATH", "task_log.db"),

		BudgetPerCall: getEnvFloat("BUDGET_PER_CALL", 1.0),
		DailyBudget:   getEnvFloat("DAILY_BUDGET", 0),

		QualityEnabled:    getEnvBool("QUALITY_EVAL_ENABLED", false),
		QualityThreshold:  getEnvInt("QUALITY_THRESHOLD", 7),
		QualityMaxRetries: getEnvInt("QUALITY_MAX_RETRIES", 1),
		JudgeModel:        getEnv("JUDGE_MODEL", "gemini/gemini-2.0-flash"),
		JudgeTaskLimit:    getEnvInt("JUDGE_TASK_LIMIT", 2000),
		JudgeOutputLimit:  getEnvInt("JUDGE_OUTPUT_LIMIT", 3000),

		PromptMaxTokens: getEnvInt("PROMPT_MAX_TOKENS", 0),

		RoutingMode:    getEnv("ROUTING_MODE", "single"),
		RouterProvider: getEnv("ROUTER_PROVIDER", "google"),
		CatalogPath:    os.Getenv("CATALOG_PATH"),

		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120)) * time.Second,

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", true),

		APIKeyHash: os.Getenv("API_KEY_HASH"),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: chatID,

		WebhookURLs: splitCSV(os.Getenv("WEBHOOK_URLS")),

		RetentionDays: getEnvInt("RETENTION_DAYS", 0),
		RetentionCron: getEnv("RETENTION_CRON", "0 30 3 * * *"),
		DigestCron:    getEnv("DIGEST_CRON", "0 0 9 * * *"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	urls := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}
