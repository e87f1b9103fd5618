package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PLATFORM_TOKEN", "tok")
	t.Setenv("PLATFORM_GUILD_ID", "g1")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Bot.Prefix != "$" {
		t.Errorf("prefix = %q", cfg.Bot.Prefix)
	}
	if cfg.Bot.WaitTimeout != 5*time.Minute {
		t.Errorf("wait timeout = %s", cfg.Bot.WaitTimeout)
	}
	if cfg.Repair.Interval != 15*time.Minute {
		t.Errorf("repair interval = %s", cfg.Repair.Interval)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("BOT_PREFIX", "!")
	t.Setenv("BOT_WAIT_TIMEOUT", "90s")
	t.Setenv("CACHE_TTL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Bot.Prefix != "!" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Bot.WaitTimeout != 90*time.Second || cfg.Cache.TTL != 5*time.Second {
		t.Errorf("durations = %s %s", cfg.Bot.WaitTimeout, cfg.Cache.TTL)
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	t.Setenv("PLATFORM_TOKEN", "")
	t.Setenv("PLATFORM_GUILD_ID", "g1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadRejectsBlankPrefix(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_PREFIX", "   ")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for blank prefix")
	}
}
