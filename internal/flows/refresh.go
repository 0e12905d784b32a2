package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/shopauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRateLimited
	RefreshFailureNextSecret
	RefreshFailureReuse
	RefreshFailureSessionNotFound
	RefreshFailureRotate
	RefreshFailureIssueAccess
	RefreshFailureEncode
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SessionID    string
	UserID       string
	Session      *session.Session
	AccessToken  string
	RefreshToken string
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, sessionID string) error
}

type RefreshSessionStore interface {
	RotateRefreshHash(ctx context.Context, sessionID string, providedHash, nextHash [32]byte) (*session.Session, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefreshToken func(string) (string, [32]byte, error)
	NewRefreshSecret   func() ([32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	EncodeRefreshToken func(string, [32]byte) (string, error)
	IssueAccessToken   func(uid, sid string, admin bool) (string, error)

	RateLimiter  RefreshRateLimiter
	SessionStore RefreshSessionStore

	RefreshHashMismatch error
	RedisNil            error
}

// RunRefresh rotates the refresh secret of the session named by the token
// and issues a new access token. Presenting a superseded secret is treated
// as token theft; the store has already dropped the session in that case.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	sessionID, providedSecret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, SessionID: sessionID}
		}
	}

	nextSecret, err := deps.NewRefreshSecret()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNextSecret, Err: err, SessionID: sessionID}
	}

	sess, err := deps.SessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		deps.HashRefreshSecret(providedSecret),
		deps.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		kind := RefreshFailureRotate
		switch {
		case deps.RefreshHashMismatch != nil && errors.Is(err, deps.RefreshHashMismatch):
			kind = RefreshFailureReuse
		case deps.RedisNil != nil && errors.Is(err, deps.RedisNil):
			kind = RefreshFailureSessionNotFound
		}
		return RefreshResult{Failure: kind, Err: err, SessionID: sessionID}
	}

	result := RefreshResult{SessionID: sess.SessionID, UserID: sess.UserID, Session: sess}

	access, err := deps.IssueAccessToken(sess.UserID, sess.SessionID, sess.IsAdmin)
	if err != nil {
		result.Failure, result.Err = RefreshFailureIssueAccess, err
		return result
	}
	refresh, err := deps.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		result.Failure, result.Err = RefreshFailureEncode, err
		return result
	}

	result.AccessToken = access
	result.RefreshToken = refresh
	return result
}
