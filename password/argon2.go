package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

var (
	ErrInvalidHash   = errors.New("password: invalid argon2id hash")
	ErrInvalidConfig = errors.New("password: invalid argon2 parameters")
	ErrTooShort      = errors.New("password: too short")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinLength is the minimum accepted password length in bytes.
	MinLength int
}

// DefaultConfig returns the parameters used by new deployments.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   6,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return fmt.Errorf("%w: memory must be >= 8192 KiB", ErrInvalidConfig)
	case c.Time < 1:
		return fmt.Errorf("%w: time must be >= 1", ErrInvalidConfig)
	case c.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be >= 1", ErrInvalidConfig)
	case c.SaltLength < 16:
		return fmt.Errorf("%w: salt length must be >= 16", ErrInvalidConfig)
	case c.KeyLength < 16:
		return fmt.Errorf("%w: key length must be >= 16", ErrInvalidConfig)
	case c.MinLength < 0:
		return fmt.Errorf("%w: negative minimum length", ErrInvalidConfig)
	}
	return nil
}

// Argon2 hashes and verifies passwords as PHC strings.
type Argon2 struct {
	config Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a new salted hash. Passwords are hashed byte for byte.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < a.config.MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	p.key = p.derive(password, a.config.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash, using the cost
// parameters recorded in the hash.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := p.derive(password, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return a.config.Memory > p.memory ||
		a.config.Time > p.time ||
		a.config.Parallelism > p.parallelism ||
		int(a.config.KeyLength) != len(p.key), nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

// parsePHC accepts "$argon2id$v=19$m=..,t=..,p=..$salt$key" with raw or
// padded standard base64.
func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return nil, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	var p phc
	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrInvalidHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, kv)
		}
		switch name {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, kv)
			}
			p.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidHash, name)
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}

	var err error
	if p.salt, err = decodeB64(parts[4]); err != nil || len(p.salt) < 8 {
		return nil, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	if p.key, err = decodeB64(parts[5]); err != nil || len(p.key) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrInvalidHash)
	}
	return &p, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
