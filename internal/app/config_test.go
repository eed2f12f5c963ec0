package app

import (
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]string{"SESSION_SECRET=s"})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogMode != "development" {
		t.Fatalf("defaults: port=%q log_mode=%q", cfg.Port, cfg.LogMode)
	}
	if cfg.Poll.Interval != 5*time.Second || cfg.Poll.MaxWait != 300*time.Second {
		t.Fatalf("poll defaults: got=%+v", cfg.Poll)
	}
	if cfg.GitHub.Org != "darx-sites" || cfg.Auth.SessionTTL != 12*time.Hour {
		t.Fatalf("nested defaults: org=%q ttl=%v", cfg.GitHub.Org, cfg.Auth.SessionTTL)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]string{
		"PORT=9090",
		"CORS_ALLOWED_ORIGINS=https://a.example,https://b.example",
		"OPERATOR_EMAILS=ops@darx.example,lead@darx.example",
		"DEPLOY_MAX_WAIT=10m",
		"REDIS_ADDR=localhost:6379",
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Port != "9090" || len(cfg.CORSOrigins) != 2 || len(cfg.Auth.AllowedEmails) != 2 {
		t.Fatalf("overrides: got=%+v", cfg)
	}
	if cfg.Poll.MaxWait != 10*time.Minute || !cfg.Redis.Enabled() {
		t.Fatalf("nested overrides: poll=%+v redis=%q", cfg.Poll, cfg.Redis.Addr)
	}
}
