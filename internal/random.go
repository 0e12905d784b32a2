package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// SessionID is the 16-byte server session identifier embedded in refresh tokens.
type SessionID [16]byte

const (
	refreshTokenRawSize = 48
	refreshSecretSize   = 32
	referralSuffixSize  = 4
	referralAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	errSessionIDSize    = errors.New("invalid session id size")
	errRefreshTokenSize = errors.New("invalid refresh token size")
)

// NewSessionID returns a random (v4) session identifier.
func NewSessionID() (SessionID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(id), nil
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the compact string form produced by String.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errSessionIDSize
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewRefreshSecret returns 32 random bytes for a refresh token.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret is the value persisted server-side for a refresh secret.
func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs session id and secret into the opaque cookie value.
func EncodeRefreshToken(sessionID string, secret [refreshSecretSize]byte) (string, error) {
	sid, err := ParseSessionID(sessionID)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 0, refreshTokenRawSize)
	raw = append(raw, sid[:]...)
	raw = append(raw, secret[:]...)

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeRefreshToken is the inverse of EncodeRefreshToken.
func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errRefreshTokenSize
	}

	var sid SessionID
	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])

	return sid.String(), secret, nil
}

// NewReferralCode builds a shareable code: the first three letters of name,
// upper-cased, followed by four random alphanumerics. Names shorter than three
// letters contribute what they have.
func NewReferralCode(name string) (string, error) {
	var b strings.Builder
	b.Grow(3 + referralSuffixSize)

	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		if b.Len() == 3 {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	var buf [referralSuffixSize]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	for _, v := range buf {
		b.WriteByte(referralAlphabet[int(v)%len(referralAlphabet)])
	}

	return b.String(), nil
}
