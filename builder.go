package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/ban"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/db"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/splittoken"
	"github.com/MrEthical07/goGuard/token"
)

type permissionDecl struct {
	storage string
	names   []string
}

// Builder assembles an Engine. A Builder builds once.
type Builder struct {
	config Config

	conn     *sqlx.DB
	redis    redis.UniversalClient
	sessions session.Store

	permissions []permissionDecl
	auditSink   AuditSink
	logger      *slog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDB uses an existing connection instead of opening Config.Database.
// The engine does not close it.
func (b *Builder) WithDB(conn *sqlx.DB) *Builder {
	b.conn = conn
	return b
}

// WithRedis keeps session state in Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore sets a custom session store. It takes precedence over
// WithRedis.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

// WithPermissions declares permission names of one storage, for example
// WithPermissions("Blog", "write", "moderate") declares blog.write and
// blog.moderate. Group permission updates reject undeclared names.
func (b *Builder) WithPermissions(storage string, names ...string) *Builder {
	b.permissions = append(b.permissions, permissionDecl{storage: storage, names: names})
	return b
}

// WithAuditSink sets the audit destination. Config.Audit.Enabled still
// decides whether events are emitted.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. Without it one is built from Config.Log.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, wires the stores and returns a ready
// Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		lg, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
		if err != nil {
			return nil, err
		}
		logger = lg
	}

	registry := permission.NewRegistry()
	for _, decl := range b.permissions {
		for _, name := range decl.names {
			if _, err := registry.Register(decl.storage, name); err != nil {
				return nil, fmt.Errorf("register permission %s.%s: %w", decl.storage, name, err)
			}
		}
	}
	registry.Freeze()

	hasher, err := password.New(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}

	conn := b.conn
	ownsDB := false
	if conn == nil {
		conn, err = db.Open(context.Background(), cfg.Database.dbConfig())
		if err != nil {
			return nil, err
		}
		ownsDB = true
	}
	closeOnErr := func() {
		if ownsDB {
			_ = conn.Close()
		}
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(conn, logger); err != nil {
			closeOnErr()
			return nil, err
		}
	}

	gen := token.New()
	tokens, err := splittoken.New(conn,
		splittoken.WithClock(now),
		splittoken.WithGenerator(gen),
		splittoken.WithPolicy(splittoken.Autologin, cfg.Token.policy(splittoken.Autologin)),
		splittoken.WithPolicy(splittoken.Activation, cfg.Token.policy(splittoken.Activation)),
	)
	if err != nil {
		closeOnErr()
		return nil, err
	}

	sessions := b.sessions
	switch {
	case sessions != nil:
	case b.redis != nil:
		sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL)
	default:
		sessions = session.NewMemoryStore(cfg.Session.TTL).WithClock(now)
	}

	users := account.NewUsers(conn, hasher, tokens)
	groups := account.NewGroups(conn, registry)

	e := &Engine{
		config:    cfg,
		db:        conn,
		ownsDB:    ownsDB,
		tokens:    tokens,
		gen:       gen,
		hasher:    hasher,
		users:     users,
		groups:    groups,
		directory: account.Directory{Users: users, Groups: groups},
		registry:  registry,
		sessions:  sessions,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		now:       now,
	}
	e.bans = ban.NewTracker(conn, cfg.Ban.Policy(),
		ban.WithClock(now),
		ban.WithLogger(logger),
		ban.WithActivationHook(e.onBanActivated),
	)
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	logger.Debug("engine_built",
		slog.String("db_driver", conn.DriverName()),
		slog.Bool("ban_enabled", cfg.Ban.Policy().Enabled()),
		slog.Int("permissions", registry.Count()),
	)
	return e, nil
}
