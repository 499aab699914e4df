package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "studio")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "studio")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.PendingTTL != 30*time.Minute || cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if o := cfg.Database(); o.MaxOpenConns != 25 || o.Host != "localhost" || o.Name != "studio" {
		t.Fatalf("database options = %+v", o)
	}
	if cfg.Payment.Currency != "thb" {
		t.Fatalf("payment currency = %q", cfg.Payment.Currency)
	}
	if cfg.Broker.Exchange != "studio.bookings" {
		t.Fatalf("exchange = %q", cfg.Broker.Exchange)
	}
	if !cfg.Cache.Methods["GET"] || cfg.Cache.Methods["POST"] {
		t.Fatalf("cache methods = %v", cfg.Cache.Methods)
	}
	r, err := cfg.Schedule.Rule()
	if err != nil {
		t.Fatalf("Rule: %v", err)
	}
	if r.OpenHour != 9 || r.CloseHour != 21 || r.SlotMinutes != 60 || len(r.ClosedDays) != 0 {
		t.Fatalf("rule = %+v", r)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty JWT_SECRET")
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	cases := map[string]string{
		"STUDIO_CLOSE_HOUR":   "8",
		"STUDIO_SLOT_MINUTES": "50",
		"STUDIO_CLOSED_DAYS":  "someday",
		"STUDIO_TIMEZONE":     "Mars/Olympus",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			setRequired(t)
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s should fail", k, v)
			}
		})
	}
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}.normalize()
	if c.Capacity != 1 || c.RefillTokens != 1 || c.RefillInterval != time.Second || c.TTL != 5*time.Second {
		t.Fatalf("normalize = %+v", c)
	}
}

func TestRedisAddress(t *testing.T) {
	if got := (RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}).Address(); got != "cache:6380" {
		t.Fatalf("Address = %q", got)
	}
	if got := (RedisConfig{}).Address(); got != "localhost:6379" {
		t.Fatalf("Address = %q", got)
	}
}
