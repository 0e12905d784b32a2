package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the access-token algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

const minHS256SecretSize = 32

var (
	ErrInvalidTTL          = errors.New("jwt: access ttl must be positive")
	ErrInvalidLeeway       = errors.New("jwt: leeway must be between 0 and 2m")
	ErrMissingKey          = errors.New("jwt: signing key required")
	ErrWeakSecret          = errors.New("jwt: hs256 secret must be at least 32 bytes")
	ErrUnsupportedMethod   = errors.New("jwt: unsupported signing method")
	ErrIssuedInFuture      = errors.New("jwt: token iat too far in the future")
	errUnexpectedAlgorithm = errors.New("jwt: unexpected signing algorithm")
)

// Config configures a Manager. For Ed25519 a PublicKey alone yields a
// verify-only manager.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UID   string `json:"uid"`
	SID   string `json:"sid"`
	Admin bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses access tokens. It is safe for concurrent use.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, ErrInvalidTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, ErrInvalidLeeway
	}
	if cfg.MaxFutureIAT <= 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, ErrMissingKey
		}
		if len(cfg.PrivateKey) < minHS256SecretSize {
			return nil, ErrWeakSecret
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
		if m.verifyKey == nil {
			return nil, ErrMissingKey
		}
	default:
		return nil, ErrUnsupportedMethod
	}

	return m, nil
}

// AccessTTL reports the configured token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess signs a token for the given user and session.
func (m *Manager) CreateAccess(uid, sid string, admin bool) (string, error) {
	if m.signKey == nil {
		return "", ErrMissingKey
	}

	now := time.Now()
	claims := AccessClaims{
		UID:   uid,
		SID:   sid,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// ParseAccess verifies signature, algorithm, expiry and issuer.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("%w: %s", errUnexpectedAlgorithm, t.Method.Alg())
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(m.config.MaxFutureIAT)) {
		return nil, ErrIssuedInFuture
	}

	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if len(key) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return edKey, nil
}
