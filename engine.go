package shopauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/shopauth/internal"
	internalaudit "github.com/MrEthical07/shopauth/internal/audit"
	"github.com/MrEthical07/shopauth/internal/flows"
	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/password"
	"github.com/MrEthical07/shopauth/session"
	"github.com/MrEthical07/shopauth/userstore"
)

// Engine runs the storefront's auth operations. Build it with [New].
type Engine struct {
	config       Config
	users        userstore.Store
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	logger       zerolog.Logger
	flows        flows.Deps
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping checks the Redis connection backing sessions.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if _, err := e.sessionStore.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn().Fields(args).Msg(msg)
}

func newSessionID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	issuer := flows.SessionIssuer{
		NewSessionID:       newSessionID,
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccessToken:   e.jwtManager.CreateAccess,
		SaveSession:        e.sessionStore.Save,
		RefreshTTL:         e.config.JWT.RefreshTTL,
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
			ClientIPFromContext:  clientIPFromContext,
			Users:                e.users,
			RateLimiter:          e.rateLimiter,
			VerifyPassword:       e.passwordHash.Verify,
			PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
			HashPassword:         e.passwordHash.Hash,
			Issuer:               issuer,
			UserNotFound:         userstore.ErrNotFound,
			MetricInc:            e.flowMetricInc,
			EmitAudit:            e.emitAudit,
			Warn:                 e.warn,
			Metrics: flows.LoginMetrics{
				Success:        int(MetricLoginSuccess),
				Failure:        int(MetricLoginFailure),
				RateLimited:    int(MetricLoginRateLimited),
				AdminDenied:    int(MetricAdminDenied),
				SessionCreated: int(MetricSessionCreated),
			},
			Events: flows.LoginEvents{
				Success:     auditEventLoginSuccess,
				Failure:     auditEventLoginFailure,
				RateLimited: auditEventLoginRateLimited,
				AdminDenied: auditEventAdminLoginDenied,
			},
		},
		Signup: flows.SignupDeps{
			AutoLogin: e.config.Account.AutoLogin,
			Reward: userstore.Reward{
				Referrer: e.config.Referral.ReferrerReward,
				NewUser:  e.config.Referral.NewUserReward,
			},
			ClientIPFromContext: clientIPFromContext,
			CheckSignupRate:     e.rateLimiter.CheckSignup,
			Users:               e.users,
			HashPassword:        e.passwordHash.Hash,
			PasswordPolicy:      password.ErrTooShort,
			NewReferralCode:     internal.NewReferralCode,
			Issuer:              issuer,
			UserNotFound:        userstore.ErrNotFound,
			Duplicate:           userstore.ErrDuplicate,
			ReferralUnavailable: userstore.ErrReferralUnavailable,
			MetricInc:           e.flowMetricInc,
			EmitAudit:           e.emitAudit,
			Warn:                e.warn,
			Metrics: flows.SignupMetrics{
				Success:         int(MetricSignupSuccess),
				Duplicate:       int(MetricSignupDuplicate),
				RateLimited:     int(MetricSignupRateLimited),
				ReferralApplied: int(MetricReferralApplied),
				SessionCreated:  int(MetricSessionCreated),
			},
			Events: flows.SignupEvents{
				Success:         auditEventSignupSuccess,
				Duplicate:       auditEventSignupDuplicate,
				RateLimited:     auditEventSignupRateLimited,
				ReferralApplied: auditEventReferralApplied,
			},
		},
		Refresh: flows.RefreshDeps{
			DecodeRefreshToken:  internal.DecodeRefreshToken,
			NewRefreshSecret:    internal.NewRefreshSecret,
			HashRefreshSecret:   internal.HashRefreshSecret,
			EncodeRefreshToken:  internal.EncodeRefreshToken,
			IssueAccessToken:    e.jwtManager.CreateAccess,
			RateLimiter:         e.rateLimiter,
			SessionStore:        e.sessionStore,
			RefreshHashMismatch: session.ErrRefreshHashMismatch,
			RedisNil:            redis.Nil,
		},
		Logout: flows.LogoutDeps{
			ParseAccess:        e.jwtManager.ParseAccess,
			DecodeRefreshToken: internal.DecodeRefreshToken,
			HashRefreshSecret:  internal.HashRefreshSecret,
			SessionStore:       e.sessionStore,
			RedisNil:           redis.Nil,
		},
		Identity: flows.IdentityDeps{
			ParseAccess:  e.jwtManager.ParseAccess,
			SessionStore: e.sessionStore,
			Users:        e.users,
			RedisNil:     redis.Nil,
			UserNotFound: userstore.ErrNotFound,
		},
		Referral: flows.ReferralDeps{
			Users:           e.users,
			NewReferralCode: internal.NewReferralCode,
			Duplicate:       userstore.ErrDuplicate,
			MetricInc:       e.flowMetricInc,
			EmitAudit:       e.emitAudit,
			GeneratedMetric: int(MetricReferralGenerated),
			GeneratedEvent:  auditEventReferralGenerated,
		},
	}
}

// Login verifies a shopper's username (or email) and password and opens a
// session.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	return e.login(ctx, username, password, false)
}

// AdminLogin is Login restricted to staff accounts. Wrong credentials and
// non-staff accounts both yield ErrAdminDenied.
func (e *Engine) AdminLogin(ctx context.Context, username, password string) (*LoginResult, error) {
	return e.login(ctx, username, password, true)
}

func (e *Engine) login(ctx context.Context, username, password string, requireStaff bool) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, username, password, requireStaff, e.flows.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		return nil, ErrLoginRateLimited
	case flows.LoginFailureInvalidCredentials:
		if requireStaff {
			return nil, ErrAdminDenied
		}
		return nil, ErrInvalidCredentials
	case flows.LoginFailureNotStaff:
		return nil, ErrAdminDenied
	case flows.LoginFailureSession:
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, res.Err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, res.Err)
	}

	return &LoginResult{
		Identity:     identityFromUser(res.User),
		SessionID:    res.Tokens.SessionID,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, nil
}

// Me resolves an access token to the account behind it. Any failure,
// including a logged-out session, is reported as ErrUnauthorized.
func (e *Engine) Me(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricMeLatency, time.Since(start)) }()
	}

	res := flows.RunIdentity(ctx, accessToken, e.flows.Identity)
	switch res.Failure {
	case flows.IdentityFailureNone:
	case flows.IdentityFailureBackend:
		e.warn("shopauth: identity lookup failed", "error", res.Err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, res.Err)
	default:
		return nil, ErrUnauthorized
	}

	// staff status comes from the account, not the token claim
	id := identityFromUser(res.User)
	return &id, nil
}

// Refresh rotates the refresh token and returns a new access and refresh
// token pair for the same session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.jwtManager == nil {
		return "", "", ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)
		return res.AccessToken, res.RefreshToken, nil

	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", res.SessionID, ErrRefreshRateLimited, nil)
		return "", "", ErrRefreshRateLimited

	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", res.SessionID, ErrRefreshReuse, nil)
		return "", "", ErrRefreshReuse

	case flows.RefreshFailureDecode, flows.RefreshFailureSessionNotFound:
		return "", "", e.refreshInvalid(ctx, res)

	case flows.RefreshFailureIssueAccess, flows.RefreshFailureEncode, flows.RefreshFailureNextSecret:
		e.metricInc(MetricRefreshFailure)
		err := fmt.Errorf("%w: %v", ErrSessionCreationFailed, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.SessionID, err, nil)
		return "", "", err

	default:
		if errors.Is(res.Err, session.ErrSessionCorrupt) {
			return "", "", e.refreshInvalid(ctx, res)
		}
		e.metricInc(MetricRefreshFailure)
		err := fmt.Errorf("%w: %v", ErrBackendUnavailable, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", res.SessionID, err, nil)
		return "", "", err
	}
}

func (e *Engine) refreshInvalid(ctx context.Context, res flows.RefreshResult) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, "", res.SessionID, ErrRefreshInvalid, nil)
	return ErrRefreshInvalid
}

// Logout ends the session named by accessToken, falling back to
// refreshToken when the access token is absent or expired. Logging out an
// already ended session is not an error.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, accessToken, refreshToken, e.flows.Logout)
	if res.Err != nil {
		err := fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, res.Err)
		e.emitAudit(ctx, auditEventLogoutSession, false, res.UserID, res.SessionID, err, nil)
		return err
	}
	if res.UserID == "" {
		return nil
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutSession, true, res.UserID, res.SessionID, nil, nil)
	return nil
}

// LogoutAll ends every session of the account.
func (e *Engine) LogoutAll(ctx context.Context, userID int64) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	uid := fmt.Sprint(userID)
	n, err := flows.RunLogoutAll(ctx, uid, e.flows.Logout)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
		e.emitAudit(ctx, auditEventLogoutAll, false, uid, "", err, nil)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, uid, "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprint(n)}
	})
	return nil
}
