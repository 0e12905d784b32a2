// Package config loads the server process configuration from SHOPAUTH_*
// environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/MrEthical07/shopauth"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "SHOPAUTH_"

// Config holds runtime configuration for the auth API server.
type Config struct {
	Addr              string        `env:"ADDR,default=:8000"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	Memory            bool          `env:"MEMORY,default=false"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTPrivateKeyFile string        `env:"JWT_PRIVATE_KEY_FILE"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL,default=5m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	CookieSecure      bool          `env:"COOKIE_SECURE,default=false"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	RequestsPerMinute int           `env:"REQUESTS_PER_MINUTE,default=300"`
	ReferrerReward    int64         `env:"REFERRER_REWARD,default=100"`
	NewUserReward     int64         `env:"NEW_USER_REWARD,default=50"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	NATSURL           string        `env:"NATS_URL"`
	NATSSubject       string        `env:"NATS_SUBJECT,default=shopauth.audit"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	LogFormat         string        `env:"LOG_FORMAT,default=console"`
	AdminUsername     string        `env:"ADMIN_USERNAME"`
	AdminEmail        string        `env:"ADMIN_EMAIL"`
	AdminPassword     string        `env:"ADMIN_PASSWORD"`
}

// Load returns a Config populated from the process environment.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads variables through l, applying EnvPrefix.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if c.JWTSecret == "" && c.JWTPrivateKeyFile == "" {
		return errors.New("config: SHOPAUTH_JWT_SECRET or SHOPAUTH_JWT_PRIVATE_KEY_FILE is required")
	}
	if c.JWTSecret != "" && c.JWTPrivateKeyFile != "" {
		return errors.New("config: set only one of SHOPAUTH_JWT_SECRET and SHOPAUTH_JWT_PRIVATE_KEY_FILE")
	}
	if !c.Memory && c.RedisAddr == "" {
		return errors.New("config: SHOPAUTH_REDIS_ADDR is required unless SHOPAUTH_MEMORY is set")
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		return errors.New("config: SHOPAUTH_ADMIN_PASSWORD is required with SHOPAUTH_ADMIN_USERNAME")
	}
	if c.RequestsPerMinute <= 0 {
		return errors.New("config: SHOPAUTH_REQUESTS_PER_MINUTE must be > 0")
	}
	return nil
}

// Engine maps the process configuration onto the auth engine settings.
func (c Config) Engine() (shopauth.Config, error) {
	cfg := shopauth.DefaultConfig()
	cfg.JWT.AccessTTL = c.AccessTokenTTL
	cfg.JWT.RefreshTTL = c.RefreshTokenTTL
	cfg.Referral.ReferrerReward = c.ReferrerReward
	cfg.Referral.NewUserReward = c.NewUserReward
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = c.NATSURL != ""

	if c.JWTSecret != "" {
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	} else {
		key, err := os.ReadFile(c.JWTPrivateKeyFile)
		if err != nil {
			return shopauth.Config{}, fmt.Errorf("config: read private key: %w", err)
		}
		cfg.JWT.SigningMethod = "ed25519"
		cfg.JWT.PrivateKey = key
	}

	if err := cfg.Validate(); err != nil {
		return shopauth.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
