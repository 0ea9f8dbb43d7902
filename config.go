package goGuard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/ban"
	"github.com/MrEthical07/goGuard/internal/db"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/splittoken"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override sections; Builder.Build validates the result.
type Config struct {
	Token    TokenConfig    `envPrefix:"TOKEN_"`
	Ban      BanConfig      `envPrefix:"BAN_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	Cookie   CookieConfig   `envPrefix:"COOKIE_"`
	Account  AccountConfig  `envPrefix:"ACCOUNT_"`
	Audit    AuditConfig    `envPrefix:"AUDIT_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sizes the two split credential purposes. Byte counts are
// raw sizes before hex encoding.
type TokenConfig struct {
	AutologinSelectorBytes  int           `env:"AUTOLOGIN_SELECTOR_BYTES"`
	AutologinTokenBytes     int           `env:"AUTOLOGIN_TOKEN_BYTES"`
	AutologinTTL            time.Duration `env:"AUTOLOGIN_TTL"`
	ActivationSelectorBytes int           `env:"ACTIVATION_SELECTOR_BYTES"`
	ActivationTokenBytes    int           `env:"ACTIVATION_TOKEN_BYTES"`
	ActivationTTL           time.Duration `env:"ACTIVATION_TTL"`
}

func (c TokenConfig) policy(p splittoken.Purpose) splittoken.Policy {
	if p == splittoken.Autologin {
		return splittoken.Policy{SelectorBytes: c.AutologinSelectorBytes, TokenBytes: c.AutologinTokenBytes, TTL: c.AutologinTTL}
	}
	return splittoken.Policy{SelectorBytes: c.ActivationSelectorBytes, TokenBytes: c.ActivationTokenBytes, TTL: c.ActivationTTL}
}

/*
====================================
BAN CONFIG
====================================
*/

// BanConfig is the brute-force gate. Banning only happens when all three
// values are non-zero.
type BanConfig struct {
	MaxTries    int           `env:"MAX_TRIES"`
	LogWindow   time.Duration `env:"LOG_WINDOW"`
	BanDuration time.Duration `env:"DURATION"`
}

// Policy converts the section for the ban tracker.
func (c BanConfig) Policy() ban.Policy {
	return ban.Policy{MaxTries: c.MaxTries, LogWindow: c.LogWindow, BanDuration: c.BanDuration}
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id costs. Hashes made with weaker costs, and
// legacy bcrypt hashes, are replaced on login when UpgradeOnLogin is set.
type PasswordConfig struct {
	Memory           uint32 `env:"MEMORY"`
	Time             uint32 `env:"TIME"`
	Parallelism      uint8  `env:"PARALLELISM"`
	SaltLength       uint32 `env:"SALT_LENGTH"`
	KeyLength        uint32 `env:"KEY_LENGTH"`
	MaxPasswordBytes int    `env:"MAX_BYTES"`
	Pepper           string `env:"PEPPER"`
	UpgradeOnLogin   bool   `env:"UPGRADE_ON_LOGIN"`
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
		Pepper:           c.Pepper,
	}
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server-side session state.
type SessionConfig struct {
	TTL         time.Duration `env:"TTL"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
	CookieName  string        `env:"COOKIE_NAME"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the cookies written through a CookieJar.
// SameSite is one of "lax", "strict" or "none".
type CookieConfig struct {
	AutologinName string `env:"AUTOLOGIN_NAME"`
	Path          string `env:"PATH"`
	Domain        string `env:"DOMAIN"`
	Secure        bool   `env:"SECURE"`
	HTTPOnly      bool   `env:"HTTP_ONLY"`
	SameSite      string `env:"SAME_SITE"`
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// Activation modes for new accounts.
const (
	ActivationNone  = "none"
	ActivationMail  = "mail"
	ActivationAdmin = "admin"
)

// AccountConfig controls account creation.
type AccountConfig struct {
	Activation string `env:"ACTIVATION"`
}

func (c AccountConfig) initialState() account.State {
	switch c.Activation {
	case ActivationMail:
		return account.StatePendingMail
	case ActivationAdmin:
		return account.StatePendingAdmin
	default:
		return account.StateActive
	}
}

/*
====================================
AUDIT / METRICS / LOG CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// LogConfig is used when no logger is passed to the Builder.
type LogConfig struct {
	Level string `env:"LEVEL"`
	JSON  bool   `env:"JSON"`
}

/*
====================================
DATABASE CONFIG
====================================
*/

// DatabaseConfig is used when the Builder opens its own connection.
type DatabaseConfig struct {
	Driver          string        `env:"DRIVER"`
	DSN             string        `env:"DSN"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE"`
}

func (c DatabaseConfig) dbConfig() db.Config {
	return db.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// DefaultConfig returns production defaults. Banning is off until
// Ban.MaxTries is set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	auto := splittoken.DefaultPolicy(splittoken.Autologin)
	act := splittoken.DefaultPolicy(splittoken.Activation)
	banPolicy := ban.DefaultPolicy()
	pw := password.DefaultConfig()

	return Config{
		Token: TokenConfig{
			AutologinSelectorBytes:  auto.SelectorBytes,
			AutologinTokenBytes:     auto.TokenBytes,
			AutologinTTL:            auto.TTL,
			ActivationSelectorBytes: act.SelectorBytes,
			ActivationTokenBytes:    act.TokenBytes,
			ActivationTTL:           act.TTL,
		},
		Ban: BanConfig{
			MaxTries:    banPolicy.MaxTries,
			LogWindow:   banPolicy.LogWindow,
			BanDuration: banPolicy.BanDuration,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Session: SessionConfig{
			TTL:         24 * time.Hour,
			RedisPrefix: "gg",
			CookieName:  "gg_session",
		},
		Cookie: CookieConfig{
			AutologinName: "gg_autologin",
			Path:          "/",
			Secure:        true,
			HTTPOnly:      true,
			SameSite:      "lax",
		},
		Account: AccountConfig{
			Activation: ActivationNone,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver:          db.DriverSQLite,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cookie.SameSite = strings.ToLower(strings.TrimSpace(cfg.Cookie.SameSite))
	out.Account.Activation = strings.ToLower(strings.TrimSpace(cfg.Account.Activation))
	return out
}

// LoadConfigFromEnv overlays environment variables on DefaultConfig.
// Variable names are prefix + section + field, for example
// GOGUARD_BAN_MAX_TRIES or GOGUARD_DATABASE_DSN. An empty prefix means
// "GOGUARD_".
func LoadConfigFromEnv(prefix string) (Config, error) {
	if prefix == "" {
		prefix = "GOGUARD_"
	}
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	cfg = cloneConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Tokens
	for _, p := range []splittoken.Purpose{splittoken.Autologin, splittoken.Activation} {
		if err := c.Token.policy(p).Validate(); err != nil {
			return fmt.Errorf("Token %s: %w", p, err)
		}
	}

	// Ban
	if c.Ban.MaxTries < 0 {
		return errors.New("Ban MaxTries must be >= 0")
	}
	if c.Ban.LogWindow < 0 || c.Ban.BanDuration < 0 {
		return errors.New("Ban LogWindow and BanDuration must be >= 0")
	}
	if c.Ban.LogWindow%time.Second != 0 || c.Ban.BanDuration%time.Second != 0 {
		return errors.New("Ban LogWindow and BanDuration must be whole seconds")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must not be empty")
	}

	// Cookie
	if c.Cookie.AutologinName == "" {
		return errors.New("Cookie AutologinName must not be empty")
	}
	if c.Cookie.AutologinName == c.Session.CookieName {
		return errors.New("Cookie AutologinName must differ from Session CookieName")
	}
	switch c.Cookie.SameSite {
	case "", "lax", "strict":
	case "none":
		if !c.Cookie.Secure {
			return errors.New("Cookie SameSite none requires Secure")
		}
	default:
		return fmt.Errorf("Cookie SameSite %q is not supported", c.Cookie.SameSite)
	}

	// Account
	switch c.Account.Activation {
	case "", ActivationNone, ActivationMail, ActivationAdmin:
	default:
		return fmt.Errorf("Account Activation %q is not supported", c.Account.Activation)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("Log Level: %w", err)
	}

	// Database
	switch c.Database.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("Database Driver %q is not supported", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("Database connection limits must be >= 0")
	}

	return nil
}
