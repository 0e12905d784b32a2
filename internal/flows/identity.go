package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/session"
	"github.com/MrEthical07/shopauth/userstore"
)

// IdentityFailureKind classifies access-token resolution failures.
type IdentityFailureKind int

const (
	IdentityFailureNone IdentityFailureKind = iota
	IdentityFailureToken
	IdentityFailureSessionNotFound
	IdentityFailureSessionMismatch
	IdentityFailureUserNotFound
	IdentityFailureBackend
)

type IdentityResult struct {
	Failure IdentityFailureKind
	Err     error
	Claims  *jwt.AccessClaims
	User    *userstore.User
}

type IdentitySessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

type IdentityUserStore interface {
	ByID(ctx context.Context, id int64) (*userstore.User, error)
}

type IdentityDeps struct {
	ParseAccess  func(string) (*jwt.AccessClaims, error)
	SessionStore IdentitySessionStore
	Users        IdentityUserStore
	RedisNil     error
	UserNotFound error
}

// RunIdentity resolves an access token to its account. The session must
// still exist, so a logged-out token stops working before it expires.
func RunIdentity(ctx context.Context, accessToken string, deps IdentityDeps) IdentityResult {
	claims, err := deps.ParseAccess(accessToken)
	if err != nil {
		return IdentityResult{Failure: IdentityFailureToken, Err: err}
	}

	sess, err := deps.SessionStore.Get(ctx, claims.SID)
	if err != nil {
		if deps.RedisNil != nil && errors.Is(err, deps.RedisNil) {
			return IdentityResult{Failure: IdentityFailureSessionNotFound, Err: err, Claims: claims}
		}
		return IdentityResult{Failure: IdentityFailureBackend, Err: err, Claims: claims}
	}
	if sess.UserID != claims.UID {
		return IdentityResult{Failure: IdentityFailureSessionMismatch, Claims: claims}
	}

	id, err := strconv.ParseInt(claims.UID, 10, 64)
	if err != nil {
		return IdentityResult{Failure: IdentityFailureToken, Err: err, Claims: claims}
	}
	user, err := deps.Users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, deps.UserNotFound) {
			return IdentityResult{Failure: IdentityFailureUserNotFound, Err: err, Claims: claims}
		}
		return IdentityResult{Failure: IdentityFailureBackend, Err: err, Claims: claims}
	}

	return IdentityResult{Claims: claims, User: user}
}
