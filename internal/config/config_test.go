package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.BaseURL != "https://api.mexc.com/api/v3" {
		t.Errorf("base_url = %q", cfg.Exchange.BaseURL)
	}
	if cfg.Telegram.MinReportedDuration != time.Minute {
		t.Errorf("min_reported_duration = %v", cfg.Telegram.MinReportedDuration)
	}
	if cfg.Engine.MaxWorkers != 10 || cfg.Engine.ReportCap != 4000 || cfg.Engine.MaxDisplay != 20 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Store.Driver != "json" || cfg.Cache.Driver != "memory" {
		t.Errorf("drivers = %s/%s", cfg.Store.Driver, cfg.Cache.Driver)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  bot_token: file-token
  chat_id: "100"
engine:
  message_interval: 2s
store:
  driver: sqlite
kafka:
  brokers: [a:9092]
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RESUME_LAST_MODE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("bot_token = %q, want env override", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.ChatID != "100" {
		t.Errorf("chat_id = %q, want file value", cfg.Telegram.ChatID)
	}
	if cfg.Engine.MessageInterval != 2*time.Second {
		t.Errorf("message_interval = %v", cfg.Engine.MessageInterval)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store.driver = %q", cfg.Store.Driver)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Engine.ResumeLastMode {
		t.Error("resume_last_mode not taken from env")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	path := writeConfig(t, `
exchange:
  max_retries: 0
engine:
  grace_delay: 0s
  message_interval: 0s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.MaxRetries != 0 {
		t.Errorf("max_retries = %d, want 0", cfg.Exchange.MaxRetries)
	}
	if cfg.Engine.GraceDelay != 0 || cfg.Engine.MessageInterval != 0 {
		t.Errorf("grace_delay = %v, message_interval = %v, want 0", cfg.Engine.GraceDelay, cfg.Engine.MessageInterval)
	}
	if cfg.Engine.MaxWorkers != 10 {
		t.Errorf("unset max_workers = %d, want default", cfg.Engine.MaxWorkers)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "none.yaml")); err == nil {
		t.Fatal("expected error for malformed .env")
	}

	if err := os.Remove(filepath.Join(dir, ".env")); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "none.yaml")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "telegram: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.BotToken = "" }, "bottoken"},
		{"missing chat", func(c *Config) { c.Telegram.ChatID = "" }, "chatid"},
		{"bad store driver", func(c *Config) { c.Store.Driver = "postgres" }, "driver"},
		{"report cap too large", func(c *Config) { c.Engine.ReportCap = 5000 }, "reportcap"},
		{"zero rate", func(c *Config) { c.Exchange.RequestsPerSecond = 0 }, "requestspersecond"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			if err != nil {
				t.Fatal(err)
			}
			cfg.Telegram.BotToken = "t"
			cfg.Telegram.ChatID = "1"
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
