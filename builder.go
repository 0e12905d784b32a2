package shopauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	internalaudit "github.com/MrEthical07/shopauth/internal/audit"
	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/password"
	"github.com/MrEthical07/shopauth/session"
	"github.com/MrEthical07/shopauth/userstore"
)

// Builder assembles an Engine. A Builder can build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	users  userstore.Store
	logger zerolog.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions and rate limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store userstore.Store) *Builder {
	b.users = store
	return b
}

// WithAuditSink sets where audit events go. It has no effect unless
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		users:        b.users,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		logger:       b.logger.With().Str("component", "shopauth").Logger(),
	}

	signupAttempts := 0
	if cfg.Account.EnableIPThrottle {
		signupAttempts = cfg.Account.AccountCreationMaxAttempts
	}
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		MaxSignupAttempts:       signupAttempts,
		SignupCooldownDuration:  cfg.Account.AccountCreationCooldown,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
