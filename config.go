package shopauth

import (
	"errors"
	"strings"
	"time"
)

// Config holds every Engine tunable. Start from [DefaultConfig] and override
// what differs; [Builder.Build] validates the result.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Account  AccountConfig
	Referral ReferralConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	// RedisPrefix namespaces session hashes (<prefix>:<sid>) and per-user
	// session sets (<prefix>u:<uid>).
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

type AccountConfig struct {
	// AutoLogin opens a session for a freshly created account.
	AutoLogin                  bool
	EnableIPThrottle           bool
	AccountCreationMaxAttempts int
	AccountCreationCooldown    time.Duration
}

// ReferralConfig sets the coins granted when a referral code is redeemed.
type ReferralConfig struct {
	ReferrerReward int64
	NewUserReward  int64
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// DefaultConfig returns the production defaults. Signing keys are left empty
// and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "shopauth",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "ss",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      6,
			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			AutoLogin:                  true,
			EnableIPThrottle:           true,
			AccountCreationMaxAttempts: 5,
			AccountCreationCooldown:    15 * time.Minute,
		},
		Referral: ReferralConfig{
			ReferrerReward: 100,
			NewUserReward:  50,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        false,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New(c.JWT.SigningMethod + " requires PrivateKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, ": ") {
		return errors.New("Session RedisPrefix must not contain ':' or spaces")
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
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Account
	if c.Account.EnableIPThrottle {
		if c.Account.AccountCreationMaxAttempts <= 0 {
			return errors.New("Account AccountCreationMaxAttempts must be > 0")
		}
		if c.Account.AccountCreationCooldown <= 0 {
			return errors.New("Account AccountCreationCooldown must be > 0")
		}
	}

	// Referral
	if c.Referral.ReferrerReward < 0 || c.Referral.NewUserReward < 0 {
		return errors.New("Referral rewards must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0")
		}
	}

	return nil
}
