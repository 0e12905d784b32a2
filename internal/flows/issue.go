package flows

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/shopauth/session"
	"github.com/MrEthical07/shopauth/userstore"
)

// IssuedSession is a freshly created server session and its token pair.
type IssuedSession struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// SessionIssuer creates a Redis session for a user and mints its tokens.
// Login, admin login and signup share it.
type SessionIssuer struct {
	NewSessionID       func() (string, error)
	NewRefreshSecret   func() ([32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	EncodeRefreshToken func(string, [32]byte) (string, error)
	IssueAccessToken   func(uid, sid string, admin bool) (string, error)
	SaveSession        func(context.Context, *session.Session, time.Duration) error
	RefreshTTL         time.Duration
	Now                func() time.Time
}

func (s SessionIssuer) Issue(ctx context.Context, u *userstore.User) (IssuedSession, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	sid, err := s.NewSessionID()
	if err != nil {
		return IssuedSession{}, fmt.Errorf("session id: %w", err)
	}
	secret, err := s.NewRefreshSecret()
	if err != nil {
		return IssuedSession{}, fmt.Errorf("refresh secret: %w", err)
	}

	issuedAt := now()
	sess := &session.Session{
		SessionID:   sid,
		UserID:      strconv.FormatInt(u.ID, 10),
		IsAdmin:     u.IsStaff,
		RefreshHash: s.HashRefreshSecret(secret),
		CreatedAt:   issuedAt.Unix(),
		ExpiresAt:   issuedAt.Add(s.RefreshTTL).Unix(),
	}
	if err := s.SaveSession(ctx, sess, s.RefreshTTL); err != nil {
		return IssuedSession{}, err
	}

	access, err := s.IssueAccessToken(sess.UserID, sid, sess.IsAdmin)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("access token: %w", err)
	}
	refresh, err := s.EncodeRefreshToken(sid, secret)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("refresh token: %w", err)
	}

	return IssuedSession{SessionID: sid, AccessToken: access, RefreshToken: refresh}, nil
}
