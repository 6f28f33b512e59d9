package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	AuthVerifyURL  string
	AuthTimeoutSec int

	MatchTTL    time.Duration
	PresenceTTL time.Duration

	ConflictRetries int

	MessageOverrideDir string

	MaxChatLen int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		AuthTimeoutSec:  5,
		MatchTTL:        24 * time.Hour,
		PresenceTTL:     5 * time.Minute,
		ConflictRetries: 3,
		MaxChatLen:      500,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.AuthVerifyURL = strings.TrimSpace(os.Getenv("AUTH_VERIFY_URL"))

	if v := strings.TrimSpace(os.Getenv("AUTH_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuthTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MATCH_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MatchTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PRESENCE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PresenceTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CONFLICT_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConflictRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_CHAT_LEN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxChatLen = n
		}
	}
	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AuthVerifyURL == "" {
		return nil, errors.New("AUTH_VERIFY_URL is required")
	}
	// DATABASE_URL is optional: without it stats recording is disabled.

	return cfg, nil
}
