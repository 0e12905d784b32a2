package session

import (
	"encoding/hex"
	"strconv"
)

// Session is the server-side record behind one login. It is persisted as a
// Redis hash; RefreshHash holds sha256 of the current refresh secret.
type Session struct {
	SessionID string
	UserID    string
	IsAdmin   bool

	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}

const (
	fieldUserID      = "uid"
	fieldAdmin       = "adm"
	fieldRefreshHash = "rh"
	fieldCreatedAt   = "iat"
	fieldExpiresAt   = "exp"
)

func (s *Session) fields() map[string]any {
	adm := "0"
	if s.IsAdmin {
		adm = "1"
	}
	return map[string]any{
		fieldUserID:      s.UserID,
		fieldAdmin:       adm,
		fieldRefreshHash: hex.EncodeToString(s.RefreshHash[:]),
		fieldCreatedAt:   strconv.FormatInt(s.CreatedAt, 10),
		fieldExpiresAt:   strconv.FormatInt(s.ExpiresAt, 10),
	}
}

func parseSession(sessionID string, values map[string]string) (*Session, error) {
	uid := values[fieldUserID]
	if uid == "" {
		return nil, ErrSessionCorrupt
	}

	raw, err := hex.DecodeString(values[fieldRefreshHash])
	if err != nil || len(raw) != 32 {
		return nil, ErrSessionCorrupt
	}
	createdAt, err := strconv.ParseInt(values[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, ErrSessionCorrupt
	}
	expiresAt, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, ErrSessionCorrupt
	}

	sess := &Session{
		SessionID: sessionID,
		UserID:    uid,
		IsAdmin:   values[fieldAdmin] == "1",
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	copy(sess.RefreshHash[:], raw)
	return sess, nil
}
