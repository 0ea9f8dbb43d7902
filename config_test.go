package goGuard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/internal/dbtest"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Ban.MaxTries != 0 {
		t.Fatalf("banning must be off by default, MaxTries=%d", cfg.Ban.MaxTries)
	}
	if cfg.Token.AutologinTTL != 30*24*time.Hour || cfg.Token.ActivationTTL != 240*time.Hour {
		t.Fatalf("unexpected token ttls %v %v", cfg.Token.AutologinTTL, cfg.Token.ActivationTTL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "ban enabled",
			mutate: func(c *Config) {
				c.Ban = BanConfig{MaxTries: 3, LogWindow: 5 * time.Minute, BanDuration: 10 * time.Minute}
			},
			wantValid: true,
		},
		{
			name:      "ban negative tries",
			mutate:    func(c *Config) { c.Ban.MaxTries = -1 },
			wantValid: false,
		},
		{
			name:      "ban fractional window",
			mutate:    func(c *Config) { c.Ban.LogWindow = 1500 * time.Millisecond },
			wantValid: false,
		},
		{
			name:      "autologin selector too short",
			mutate:    func(c *Config) { c.Token.AutologinSelectorBytes = 4 },
			wantValid: false,
		},
		{
			name:      "activation token too short",
			mutate:    func(c *Config) { c.Token.ActivationTokenBytes = 8 },
			wantValid: false,
		},
		{
			name:      "activation ttl zero",
			mutate:    func(c *Config) { c.Token.ActivationTTL = 0 },
			wantValid: false,
		},
		{
			name:      "argon memory too low",
			mutate:    func(c *Config) { c.Password.Memory = 4096 },
			wantValid: false,
		},
		{
			name:      "argon parallelism zero",
			mutate:    func(c *Config) { c.Password.Parallelism = 0 },
			wantValid: false,
		},
		{
			name:      "session ttl zero",
			mutate:    func(c *Config) { c.Session.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "cookie names collide",
			mutate:    func(c *Config) { c.Cookie.AutologinName = c.Session.CookieName },
			wantValid: false,
		},
		{
			name: "same site none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = "none"
				c.Cookie.Secure = false
			},
			wantValid: false,
		},
		{
			name:      "same site strict",
			mutate:    func(c *Config) { c.Cookie.SameSite = "strict" },
			wantValid: true,
		},
		{
			name:      "unknown same site",
			mutate:    func(c *Config) { c.Cookie.SameSite = "sometimes" },
			wantValid: false,
		},
		{
			name:      "mail activation",
			mutate:    func(c *Config) { c.Account.Activation = ActivationMail },
			wantValid: true,
		},
		{
			name:      "unknown activation",
			mutate:    func(c *Config) { c.Account.Activation = "carrier-pigeon" },
			wantValid: false,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Log.Level = "loud" },
			wantValid: false,
		},
		{
			name:      "postgres driver",
			mutate:    func(c *Config) { c.Database.Driver = "pgx" },
			wantValid: true,
		},
		{
			name:      "unknown driver",
			mutate:    func(c *Config) { c.Database.Driver = "mysql" },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected invalid config")
			}
		})
	}
}

func TestInitialStateFollowsActivationMode(t *testing.T) {
	cases := map[string]account.State{
		"":              account.StateActive,
		ActivationNone:  account.StateActive,
		ActivationMail:  account.StatePendingMail,
		ActivationAdmin: account.StatePendingAdmin,
	}
	for mode, want := range cases {
		if got := (AccountConfig{Activation: mode}).initialState(); got != want {
			t.Fatalf("mode %q: got %v, want %v", mode, got, want)
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GG_TEST_BAN_MAX_TRIES", "5")
	t.Setenv("GG_TEST_BAN_LOG_WINDOW", "2m")
	t.Setenv("GG_TEST_BAN_DURATION", "15m")
	t.Setenv("GG_TEST_COOKIE_SAME_SITE", " Strict ")
	t.Setenv("GG_TEST_ACCOUNT_ACTIVATION", "MAIL")
	t.Setenv("GG_TEST_DATABASE_DSN", "file::memory:")

	cfg, err := LoadConfigFromEnv("GG_TEST_")
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Ban.MaxTries != 5 || cfg.Ban.LogWindow != 2*time.Minute || cfg.Ban.BanDuration != 15*time.Minute {
		t.Fatalf("ban section not loaded: %+v", cfg.Ban)
	}
	if cfg.Cookie.SameSite != "strict" || cfg.Account.Activation != ActivationMail {
		t.Fatalf("enum values not normalized: %q %q", cfg.Cookie.SameSite, cfg.Account.Activation)
	}
	if cfg.Database.DSN != "file::memory:" {
		t.Fatalf("dsn not loaded: %q", cfg.Database.DSN)
	}
	if cfg.Session.CookieName != "gg_session" {
		t.Fatalf("unset values must keep defaults, got %q", cfg.Session.CookieName)
	}
}

func TestLoadConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("GG_BAD_PASSWORD_MEMORY", "1024")
	if _, err := LoadConfigFromEnv("GG_BAD_"); err == nil {
		t.Fatalf("expected validation error")
	}

	t.Setenv("GG_WORSE_BAN_MAX_TRIES", "many")
	if _, err := LoadConfigFromEnv("GG_WORSE_"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBuilderRefusesReuse(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Session.TTL = 0
	if _, err := New().WithConfig(cfg).WithDB(dbtest.Open(t)).Build(); err == nil {
		t.Fatalf("expected invalid config to fail Build")
	}

	b := New().WithConfig(engineTestConfig()).WithDB(dbtest.Open(t))
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected second Build to fail")
	}
}

func TestBuildLoggerFollowsLogConfig(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Log = LogConfig{Level: "debug", JSON: true}
	e, err := New().WithConfig(cfg).WithDB(dbtest.Open(t)).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()
	if _, ok := e.logger.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("expected JSON handler, got %T", e.logger.Handler())
	}
	if !e.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug level not applied")
	}

	injected := slog.New(slog.DiscardHandler)
	e2, err := New().WithConfig(cfg).WithDB(dbtest.Open(t)).WithLogger(injected).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e2.Close()
	if e2.logger != injected {
		t.Fatalf("WithLogger must take precedence over Config.Log")
	}
}
