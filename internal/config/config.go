// Package config loads the bot configuration from environment variables.
// An optional .env file in the working directory is picked up first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the full runtime configuration.
type Config struct {
	BotToken       string
	OwnerID        int64
	AllowedChatIDs map[int64]struct{}

	DailyLimit     int
	HourlyLimit    int
	ShortTermLimit int

	ShortTermWindow time.Duration
	ShortTermMute   time.Duration
	HourlyMute      time.Duration
	VoiceMute       time.Duration
	DailyMute       time.Duration

	ExemptOwner   bool
	ExemptCreator bool
	ExemptAdmin   bool

	DBPath        string
	MetricsAddr   string
	FlushSchedule string
	LogLevel      string
	LogFormat     string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("config: no .env file loaded")
	}

	cfg := &Config{
		BotToken: os.Getenv("BOT_TOKEN"),

		DailyLimit:     envInt("DAILY_MESSAGE_LIMIT", 200),
		HourlyLimit:    envInt("HOURLY_MESSAGE_LIMIT", 100),
		ShortTermLimit: envInt("SHORT_TERM_MESSAGE_LIMIT", 10),

		ShortTermWindow: envMinutes("SHORT_TERM_WINDOW_MINUTES", 5),
		ShortTermMute:   envMinutes("SHORT_TERM_MUTE_MINUTES", 3),
		HourlyMute:      envMinutes("HOURLY_MUTE_MINUTES", 15),
		VoiceMute:       envMinutes("VOICE_MUTE_MINUTES", 30),
		DailyMute:       time.Duration(envInt("DAILY_MUTE_DAYS", 7)) * 24 * time.Hour,

		ExemptOwner:   envBool("EXEMPT_OWNER_ANTIFLOOD", true),
		ExemptCreator: envBool("EXEMPT_CREATOR_ANTIFLOOD", true),
		ExemptAdmin:   envBool("EXEMPT_ADMIN_ANTIFLOOD", true),

		DBPath:        os.Getenv("MODGUARD_DB_PATH"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		FlushSchedule: envString("FLUSH_SCHEDULE", "@every 5m"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		LogFormat:     os.Getenv("LOG_FORMAT"),
	}

	var err error
	cfg.OwnerID, err = envInt64("OWNER_ID")
	if err != nil {
		return nil, err
	}

	cfg.AllowedChatIDs, err = parseChatIDs(os.Getenv("ALLOWED_CHAT_IDS"))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.DailyLimit <= 0 || c.HourlyLimit <= 0 || c.ShortTermLimit <= 0 {
		return errors.New("message limits must be positive")
	}
	if c.ShortTermWindow <= 0 {
		return errors.New("short-term window must be positive")
	}
	if c.ShortTermMute <= 0 || c.HourlyMute <= 0 || c.VoiceMute <= 0 || c.DailyMute <= 0 {
		return errors.New("mute durations must be positive")
	}
	return nil
}

// AllowedChat reports whether events from the chat should be processed.
// An empty allowlist admits nothing.
func (c *Config) AllowedChat(chatID int64) bool {
	_, ok := c.AllowedChatIDs[chatID]
	return ok
}

func parseChatIDs(raw string) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in ALLOWED_CHAT_IDS: %w", part, err)
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("config: invalid integer, using default")
		return fallback
	}
	return n
}

func envInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}

func envMinutes(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Minute
}
