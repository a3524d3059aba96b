// Package config assembles runtime settings for the API server. There is no
// ambient global: Load returns a value that main passes into each
// component's constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every knob the service needs at startup.
type Config struct {
	ListenAddr  string
	DatabaseDSN string
	RedisAddr   string

	AuthSecret string
	// Strategy is "token" or "session"; exactly one credential design runs
	// per deployment.
	Strategy string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionTTL      time.Duration
	ResetTokenTTL   time.Duration
	OTPTTL          time.Duration

	PasswordResetURL string

	SMTPHost     string
	SMTPPort     int
	SMTPLogin    string
	SMTPPassword string
	FromEmail    string

	SMSEndpoint string
	SMSAPIKey   string
	SMSSender   string

	RateBurst  int
	RatePerSec int
}

// Defaults returns development-grade settings. The auth secret has no
// default; deployments must provide one.
func Defaults() Config {
	return Config{
		ListenAddr:       ":8080",
		Strategy:         "token",
		AccessTokenTTL:   30 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		SessionTTL:       24 * time.Hour,
		ResetTokenTTL:    15 * time.Minute,
		OTPTTL:           10 * time.Minute,
		PasswordResetURL: "http://127.0.0.1:8000/reset-password",
		SMTPPort:         587,
		RateBurst:        20,
		RatePerSec:       10,
	}
}

// Load overlays VENDOOR_* environment variables onto the defaults and
// validates the result.
func Load() (Config, error) {
	cfg := Defaults()

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("VENDOOR_ADDR", &cfg.ListenAddr)
	str("VENDOOR_PG_DSN", &cfg.DatabaseDSN)
	str("VENDOOR_REDIS_ADDR", &cfg.RedisAddr)
	str("VENDOOR_AUTH_SECRET", &cfg.AuthSecret)
	str("VENDOOR_AUTH_STRATEGY", &cfg.Strategy)
	str("VENDOOR_RESET_URL", &cfg.PasswordResetURL)
	str("VENDOOR_SMTP_HOST", &cfg.SMTPHost)
	str("VENDOOR_SMTP_LOGIN", &cfg.SMTPLogin)
	str("VENDOOR_SMTP_PASSWORD", &cfg.SMTPPassword)
	str("VENDOOR_FROM_EMAIL", &cfg.FromEmail)
	str("VENDOOR_SMS_ENDPOINT", &cfg.SMSEndpoint)
	str("VENDOOR_SMS_API_KEY", &cfg.SMSAPIKey)
	str("VENDOOR_SMS_SENDER", &cfg.SMSSender)

	if err := parseDuration("VENDOOR_ACCESS_TTL", &cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if err := parseDuration("VENDOOR_REFRESH_TTL", &cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if err := parseDuration("VENDOOR_SESSION_TTL", &cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if err := parseDuration("VENDOOR_RESET_TTL", &cfg.ResetTokenTTL); err != nil {
		return Config{}, err
	}
	if err := parseDuration("VENDOOR_OTP_TTL", &cfg.OTPTTL); err != nil {
		return Config{}, err
	}
	if err := parseInt("VENDOOR_SMTP_PORT", &cfg.SMTPPort); err != nil {
		return Config{}, err
	}
	if err := parseInt("VENDOOR_RATE_BURST", &cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if err := parseInt("VENDOOR_RATE_PER_SEC", &cfg.RatePerSec); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AuthSecret) == "" {
		return errors.New("config: VENDOOR_AUTH_SECRET is required")
	}
	if len(c.AuthSecret) < 32 {
		return errors.New("config: auth secret must be at least 32 bytes")
	}
	switch c.Strategy {
	case "token", "session":
	default:
		return fmt.Errorf("config: unknown auth strategy %q", c.Strategy)
	}
	return nil
}

func parseDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("config: %s must be positive", key)
	}
	*dst = d
	return nil
}

func parseInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}
