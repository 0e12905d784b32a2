package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/shopauth/userstore"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureNotStaff
	LoginFailureBackend
	LoginFailureSession
)

type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    *userstore.User
	Tokens  IssuedSession
}

type LoginUserStore interface {
	ByUsername(ctx context.Context, username string) (*userstore.User, error)
	ByEmail(ctx context.Context, email string) (*userstore.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	Success        int
	Failure        int
	RateLimited    int
	AdminDenied    int
	SessionCreated int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success     string
	Failure     string
	RateLimited string
	AdminDenied string
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string
	Users               LoginUserStore
	RateLimiter         LoginRateLimiter

	VerifyPassword       func(password, hash string) (bool, error)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(string) (string, error)

	Issuer SessionIssuer

	UserNotFound error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
}

func (d *LoginDeps) defaults() {
	if d.ClientIPFromContext == nil {
		d.ClientIPFromContext = noIP
	}
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
}

// RunLogin verifies identifier and password and opens a session. With
// requireStaff set, a correct password on a non-staff account fails with
// LoginFailureNotStaff and no session is created.
func RunLogin(ctx context.Context, identifier, password string, requireStaff bool, deps LoginDeps) LoginResult {
	deps.defaults()
	ip := deps.ClientIPFromContext(ctx)
	identifier = strings.TrimSpace(identifier)

	meta := func() map[string]string {
		m := map[string]string{"identifier": identifier}
		if requireStaff {
			m["admin"] = "true"
		}
		return m
	}

	rateLimited := func(err error) LoginResult {
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", "", err, meta)
		return LoginResult{Failure: LoginFailureRateLimited, Err: err}
	}

	// every wrong-password path counts against the identifier and IP budget
	invalid := func(userID, reason string, cause error) LoginResult {
		if deps.RateLimiter != nil {
			if err := deps.RateLimiter.IncrementLogin(ctx, identifier, ip); err != nil {
				return rateLimited(err)
			}
		}
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", cause, func() map[string]string {
			m := meta()
			m["reason"] = reason
			return m
		})
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: cause}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
			return rateLimited(err)
		}
	}

	if identifier == "" || password == "" {
		return invalid("", "empty_credentials", nil)
	}

	user, err := lookupLoginUser(ctx, deps, identifier)
	if err != nil {
		if errors.Is(err, deps.UserNotFound) {
			return invalid("", "user_not_found", err)
		}
		return LoginResult{Failure: LoginFailureBackend, Err: err}
	}
	userID := strconv.FormatInt(user.ID, 10)

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return invalid(userID, "bad_password", err)
	}

	if requireStaff && !user.IsStaff {
		deps.MetricInc(deps.Metrics.AdminDenied)
		deps.EmitAudit(ctx, deps.Events.AdminDenied, false, userID, "", nil, meta)
		return LoginResult{Failure: LoginFailureNotStaff, User: user}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, identifier, ip); err != nil {
			deps.Warn("shopauth: login limiter reset failed", "error", err)
		}
	}

	if deps.UpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil {
		rehashPassword(ctx, deps, user, password)
	}

	tokens, err := deps.Issuer.Issue(ctx, user)
	if err != nil {
		return LoginResult{Failure: LoginFailureSession, Err: err, User: user}
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, userID, tokens.SessionID, nil, meta)

	return LoginResult{User: user, Tokens: tokens}
}

func lookupLoginUser(ctx context.Context, deps LoginDeps, identifier string) (*userstore.User, error) {
	user, err := deps.Users.ByUsername(ctx, identifier)
	if err == nil || !errors.Is(err, deps.UserNotFound) || !strings.Contains(identifier, "@") {
		return user, err
	}
	return deps.Users.ByEmail(ctx, identifier)
}

// rehashPassword is best effort; a failure never blocks the login.
func rehashPassword(ctx context.Context, deps LoginDeps, user *userstore.User, password string) {
	upgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("shopauth: password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := deps.Users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("shopauth: password hash update failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
}
