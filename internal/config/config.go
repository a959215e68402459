package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	DatabaseURL   string `yaml:"database_url"`
	Timezone      string `yaml:"timezone"`

	// AnnounceChatID enables the daily prompt when non-zero.
	AnnounceChatID int64 `yaml:"announce_chat_id"`

	Grace              time.Duration `yaml:"grace"`
	Cooldown           time.Duration `yaml:"cooldown"`
	MaxNotifications   int           `yaml:"max_notifications"`
	CelebrateThreshold int           `yaml:"celebrate_threshold"`
	TransientRetries   int           `yaml:"transient_retries"`

	EscalationInterval time.Duration `yaml:"escalation_interval"`
	ReminderInterval   time.Duration `yaml:"reminder_interval"`
	StreakDigestTime   string        `yaml:"streak_digest_time"`
	DailyPromptTime    string        `yaml:"daily_prompt_time"`

	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	SendRate        float64       `yaml:"send_rate"`

	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DatabaseURL:        "nudge_planner.db",
		Timezone:           "America/New_York",
		Grace:              360 * time.Minute,
		Cooldown:           180 * time.Minute,
		MaxNotifications:   5,
		CelebrateThreshold: 6,
		EscalationInterval: 10 * time.Minute,
		ReminderInterval:   time.Minute,
		StreakDigestTime:   "08:30",
		DailyPromptTime:    "09:00",
		DeliveryTimeout:    15 * time.Second,
		SendRate:           25,
		Env:                "development",
		LogLevel:           "info",
	}
}

// Load reads the optional YAML file named by CONFIG_FILE, then applies
// environment variables on top of it.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Timezone, "TZ")
	setString(&cfg.StreakDigestTime, "STREAK_DIGEST_TIME")
	setString(&cfg.DailyPromptTime, "DAILY_PROMPT_TIME")
	setString(&cfg.Env, "ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")

	if raw := env("ANNOUNCE_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ANNOUNCE_CHAT_ID: %w", err)
		}
		cfg.AnnounceChatID = id
	}

	minutes := []struct {
		key string
		dst *time.Duration
	}{
		{"THREAT_GRACE_MINUTES", &cfg.Grace},
		{"THREAT_COOLDOWN_MINUTES", &cfg.Cooldown},
	}
	for _, m := range minutes {
		if raw := env(m.key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", m.key, err)
			}
			*m.dst = time.Duration(n) * time.Minute
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ESCALATION_INTERVAL", &cfg.EscalationInterval},
		{"REMINDER_INTERVAL", &cfg.ReminderInterval},
		{"DELIVERY_TIMEOUT", &cfg.DeliveryTimeout},
	}
	for _, d := range durations {
		if raw := env(d.key); raw != "" {
			v, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_NOTIFICATIONS", &cfg.MaxNotifications},
		{"CELEBRATE_THRESHOLD", &cfg.CelebrateThreshold},
		{"TRANSIENT_RETRIES", &cfg.TransientRetries},
		{"REDIS_DB", &cfg.RedisDB},
	}
	for _, i := range ints {
		if raw := env(i.key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.key, err)
			}
			*i.dst = v
		}
	}

	if raw := env("SEND_RATE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid SEND_RATE: %w", err)
		}
		cfg.SendRate = v
	}

	return nil
}

// Validate checks values that would make the scheduler misbehave.
func (c Config) Validate() error {
	switch {
	case c.TelegramToken == "":
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	case c.Grace < 0 || c.Cooldown < 0:
		return fmt.Errorf("grace and cooldown must not be negative")
	case c.MaxNotifications < 0:
		return fmt.Errorf("max notifications must not be negative")
	case c.CelebrateThreshold <= 0:
		return fmt.Errorf("celebrate threshold must be positive")
	case c.TransientRetries < 0:
		return fmt.Errorf("transient retries must not be negative")
	case c.EscalationInterval <= 0 || c.ReminderInterval <= 0:
		return fmt.Errorf("scan intervals must be positive")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}
