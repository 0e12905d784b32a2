package flows

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/session"
)

type LogoutSessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ParseAccess        func(string) (*jwt.AccessClaims, error)
	DecodeRefreshToken func(string) (string, [32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	SessionStore       LogoutSessionStore
	RedisNil           error
}

type LogoutResult struct {
	SessionID string
	UserID    string
	Err       error
}

// RunLogout ends the session named by the access token, or by the refresh
// token when the access token is missing or expired. A refresh token only
// counts when its secret matches the stored hash. No usable token is not an
// error: there is nothing to end.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	if accessToken != "" {
		if claims, err := deps.ParseAccess(accessToken); err == nil {
			return LogoutResult{
				SessionID: claims.SID,
				UserID:    claims.UID,
				Err:       deps.SessionStore.Delete(ctx, claims.SID),
			}
		}
	}

	if refreshToken == "" {
		return LogoutResult{}
	}
	sessionID, secret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return LogoutResult{}
	}

	sess, err := deps.SessionStore.Get(ctx, sessionID)
	if err != nil {
		if deps.RedisNil != nil && errors.Is(err, deps.RedisNil) {
			return LogoutResult{SessionID: sessionID}
		}
		return LogoutResult{SessionID: sessionID, Err: err}
	}

	presented := deps.HashRefreshSecret(secret)
	if subtle.ConstantTimeCompare(presented[:], sess.RefreshHash[:]) != 1 {
		return LogoutResult{SessionID: sessionID}
	}

	return LogoutResult{
		SessionID: sessionID,
		UserID:    sess.UserID,
		Err:       deps.SessionStore.Delete(ctx, sessionID),
	}
}

// RunLogoutAll ends every session of userID and returns how many existed.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	return deps.SessionStore.DeleteAllForUser(ctx, userID)
}
