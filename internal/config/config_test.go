package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "TZ", "THREAT_GRACE_MINUTES", "THREAT_COOLDOWN_MINUTES", "MAX_NOTIFICATIONS",
		"CELEBRATE_THRESHOLD", "ESCALATION_INTERVAL", "REMINDER_INTERVAL", "DAILY_PROMPT_TIME",
		"STREAK_DIGEST_TIME", "ANNOUNCE_CHAT_ID", "SEND_RATE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grace != 6*time.Hour || cfg.Cooldown != 3*time.Hour {
		t.Errorf("grace/cooldown = %v/%v", cfg.Grace, cfg.Cooldown)
	}
	if cfg.MaxNotifications != 5 || cfg.CelebrateThreshold != 6 {
		t.Errorf("cap/threshold = %d/%d", cfg.MaxNotifications, cfg.CelebrateThreshold)
	}
	if cfg.EscalationInterval != 10*time.Minute || cfg.ReminderInterval != time.Minute {
		t.Errorf("intervals = %v/%v", cfg.EscalationInterval, cfg.ReminderInterval)
	}
	if cfg.Timezone != "America/New_York" || cfg.DailyPromptTime != "09:00" {
		t.Errorf("timezone/prompt = %s/%s", cfg.Timezone, cfg.DailyPromptTime)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without TELEGRAM_TOKEN")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("THREAT_GRACE_MINUTES", "90")
	t.Setenv("THREAT_COOLDOWN_MINUTES", "30")
	t.Setenv("MAX_NOTIFICATIONS", "2")
	t.Setenv("ANNOUNCE_CHAT_ID", "-1001234")
	t.Setenv("ESCALATION_INTERVAL", "5m")
	t.Setenv("SEND_RATE", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grace != 90*time.Minute || cfg.Cooldown != 30*time.Minute {
		t.Errorf("grace/cooldown = %v/%v", cfg.Grace, cfg.Cooldown)
	}
	if cfg.MaxNotifications != 2 || cfg.AnnounceChatID != -1001234 {
		t.Errorf("cap/announce = %d/%d", cfg.MaxNotifications, cfg.AnnounceChatID)
	}
	if cfg.EscalationInterval != 5*time.Minute || cfg.SendRate != 2.5 {
		t.Errorf("interval/rate = %v/%v", cfg.EscalationInterval, cfg.SendRate)
	}
}

func TestLoadInvalidNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("MAX_NOTIFICATIONS", "lots")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric MAX_NOTIFICATIONS")
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
telegram_token: from-file
timezone: Europe/Berlin
grace: 2h
cooldown: 45m
celebrate_threshold: 3
streak_digest_time: "07:15"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TZ", "Asia/Tokyo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "from-file" {
		t.Errorf("token = %q", cfg.TelegramToken)
	}
	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("env should win over file, timezone = %s", cfg.Timezone)
	}
	if cfg.Grace != 2*time.Hour || cfg.Cooldown != 45*time.Minute || cfg.CelebrateThreshold != 3 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.StreakDigestTime != "07:15" || cfg.MaxNotifications != 5 {
		t.Errorf("digest/cap = %s/%d", cfg.StreakDigestTime, cfg.MaxNotifications)
	}
}
