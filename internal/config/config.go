package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the client
type Config struct {
	// Telegram
	TelegramToken string
	NotifyChatID  int64 // operator chat receiving arbitrage alerts
	TradeGroupID  int64 // group whose messages are scanned for offers
	InfoGroupID   int64 // chat hosting the game info bot (catalog oracle)

	// Mode
	AppMode string // "trade" or "enumerate"
	Debug   bool

	// LLM extraction
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Catalog enumeration
	EquipCommand      string
	ResourceCommand   string
	EquipmentLastID   int
	ResourceLastID    int
	ReplyTimeout      time.Duration
	RateLimitCooldown time.Duration
	SendInterval      time.Duration

	// Oracle reply markers. These are protocol data owned by the game bot,
	// not business logic, so they stay configurable.
	RateLimitMarker       string
	NotFoundMarkers       []string
	NotTransferableMarker string

	// Database
	DatabaseDSN string
}

const (
	defaultRateLimitMarker = "⚠️ От вас поступает слишком много сообщений. Действие не будет выполнено.\n" +
		"Не отправляйте сообщения так часто."
	defaultNotFoundMarkers       = "❗️ Экипировка не найдена,❗️ Ресурс не найден"
	defaultNotTransferableMarker = "Предмет нельзя передать"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Mode
		AppMode: getEnv("APP_MODE", "trade"),
		Debug:   getEnvBool("DEBUG", false),

		// LLM extraction
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.deepseek.com"),
		LLMModel:   getEnv("LLM_MODEL", "deepseek-chat"),

		// Catalog enumeration
		EquipCommand:      getEnv("ORACLE_EQUIP_COMMAND", "/getequip"),
		ResourceCommand:   getEnv("ORACLE_RESOURCE_COMMAND", "/getasset"),
		EquipmentLastID:   getEnvInt("EQUIPMENT_LAST_ID", 871),
		ResourceLastID:    getEnvInt("RESOURCE_LAST_ID", 1369),
		ReplyTimeout:      getEnvDuration("ORACLE_REPLY_TIMEOUT", 60*time.Second),
		RateLimitCooldown: getEnvDuration("ORACLE_RATE_LIMIT_COOLDOWN", 20*time.Second),
		SendInterval:      getEnvDuration("ORACLE_SEND_INTERVAL", time.Second),

		// Oracle markers
		RateLimitMarker:       getEnv("ORACLE_RATE_LIMIT_MARKER", defaultRateLimitMarker),
		NotFoundMarkers:       splitList(getEnv("ORACLE_NOT_FOUND_MARKERS", defaultNotFoundMarkers)),
		NotTransferableMarker: getEnv("ORACLE_NOT_TRANSFERABLE_MARKER", defaultNotTransferableMarker),

		// Database
		DatabaseDSN: getEnv("DATABASE_DSN", "data/trade.db"),
	}

	var err error
	if cfg.NotifyChatID, err = parseChatID("NOTIFY_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.TradeGroupID, err = parseChatID("TRADE_GROUP_ID"); err != nil {
		return nil, err
	}
	if cfg.InfoGroupID, err = parseChatID("INFO_GROUP_ID"); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.AppMode != "trade" && cfg.AppMode != "enumerate" {
		return nil, fmt.Errorf("invalid APP_MODE %q (want trade or enumerate)", cfg.AppMode)
	}
	if cfg.AppMode == "trade" && cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required in trade mode")
	}

	return cfg, nil
}

func parseChatID(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
