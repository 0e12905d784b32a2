package flows

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/shopauth/internal"
	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/password"
	"github.com/MrEthical07/shopauth/session"
	"github.com/MrEthical07/shopauth/userstore"
)

type auditRecord struct {
	event     string
	success   bool
	userID    string
	sessionID string
	meta      map[string]string
}

type harness struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	sessions *session.Store
	users    *userstore.Memory
	limiter  *rate.Limiter
	jwt      *jwt.Manager
	hasher   *password.Argon2

	mu      sync.Mutex
	metrics map[int]int
	audits  []auditRecord
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   6,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	return &harness{
		mr:       mr,
		rdb:      rdb,
		sessions: session.NewStore(rdb, "ss"),
		users:    userstore.NewMemory(),
		limiter: rate.New(rdb, rate.Config{
			EnableIPThrottle:        true,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        3,
			LoginCooldownDuration:   time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
			MaxSignupAttempts:       2,
			SignupCooldownDuration:  time.Minute,
		}),
		jwt:     jm,
		hasher:  hasher,
		metrics: map[int]int{},
	}
}

func (h *harness) inc(id int) {
	h.mu.Lock()
	h.metrics[id]++
	h.mu.Unlock()
}

func (h *harness) audit(_ context.Context, event string, success bool, userID, sessionID string, _ error, meta func() map[string]string) {
	rec := auditRecord{event: event, success: success, userID: userID, sessionID: sessionID}
	if meta != nil {
		rec.meta = meta()
	}
	h.mu.Lock()
	h.audits = append(h.audits, rec)
	h.mu.Unlock()
}

func (h *harness) hasAudit(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range h.audits {
		if a.event == event {
			return true
		}
	}
	return false
}

func (h *harness) issuer() SessionIssuer {
	return SessionIssuer{
		NewSessionID: func() (string, error) {
			sid, err := internal.NewSessionID()
			if err != nil {
				return "", err
			}
			return sid.String(), nil
		},
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccessToken:   h.jwt.CreateAccess,
		SaveSession:        h.sessions.Save,
		RefreshTTL:         time.Hour,
	}
}

const (
	mSuccess = iota + 1
	mFailure
	mRateLimited
	mAdminDenied
	mSessionCreated
	mDuplicate
	mReferralApplied
	mReferralGenerated
)

func (h *harness) loginDeps() LoginDeps {
	return LoginDeps{
		UpgradeOnLogin:       true,
		ClientIPFromContext:  func(context.Context) string { return "10.0.0.1" },
		Users:                h.users,
		RateLimiter:          h.limiter,
		VerifyPassword:       h.hasher.Verify,
		PasswordNeedsUpgrade: h.hasher.NeedsUpgrade,
		HashPassword:         h.hasher.Hash,
		Issuer:               h.issuer(),
		UserNotFound:         userstore.ErrNotFound,
		MetricInc:            h.inc,
		EmitAudit:            h.audit,
		Metrics: LoginMetrics{
			Success:        mSuccess,
			Failure:        mFailure,
			RateLimited:    mRateLimited,
			AdminDenied:    mAdminDenied,
			SessionCreated: mSessionCreated,
		},
		Events: LoginEvents{
			Success:     "login_success",
			Failure:     "login_failure",
			RateLimited: "login_rate_limited",
			AdminDenied: "admin_login_denied",
		},
	}
}

func (h *harness) signupDeps() SignupDeps {
	return SignupDeps{
		AutoLogin:           true,
		Reward:              userstore.Reward{Referrer: 100, NewUser: 50},
		CheckSignupRate:     h.limiter.CheckSignup,
		Users:               h.users,
		HashPassword:        h.hasher.Hash,
		PasswordPolicy:      password.ErrTooShort,
		NewReferralCode:     internal.NewReferralCode,
		Issuer:              h.issuer(),
		UserNotFound:        userstore.ErrNotFound,
		Duplicate:           userstore.ErrDuplicate,
		ReferralUnavailable: userstore.ErrReferralUnavailable,
		MetricInc:           h.inc,
		EmitAudit:           h.audit,
		Metrics: SignupMetrics{
			Success:         mSuccess,
			Duplicate:       mDuplicate,
			RateLimited:     mRateLimited,
			ReferralApplied: mReferralApplied,
			SessionCreated:  mSessionCreated,
		},
		Events: SignupEvents{
			Success:         "signup_success",
			Duplicate:       "signup_duplicate",
			RateLimited:     "signup_rate_limited",
			ReferralApplied: "referral_applied",
		},
	}
}

func (h *harness) refreshDeps() RefreshDeps {
	return RefreshDeps{
		DecodeRefreshToken:  internal.DecodeRefreshToken,
		NewRefreshSecret:    internal.NewRefreshSecret,
		HashRefreshSecret:   internal.HashRefreshSecret,
		EncodeRefreshToken:  internal.EncodeRefreshToken,
		IssueAccessToken:    h.jwt.CreateAccess,
		RateLimiter:         h.limiter,
		SessionStore:        h.sessions,
		RefreshHashMismatch: session.ErrRefreshHashMismatch,
		RedisNil:            redis.Nil,
	}
}

func (h *harness) logoutDeps() LogoutDeps {
	return LogoutDeps{
		ParseAccess:        h.jwt.ParseAccess,
		DecodeRefreshToken: internal.DecodeRefreshToken,
		HashRefreshSecret:  internal.HashRefreshSecret,
		SessionStore:       h.sessions,
		RedisNil:           redis.Nil,
	}
}

func (h *harness) identityDeps() IdentityDeps {
	return IdentityDeps{
		ParseAccess:  h.jwt.ParseAccess,
		SessionStore: h.sessions,
		Users:        h.users,
		RedisNil:     redis.Nil,
		UserNotFound: userstore.ErrNotFound,
	}
}

func (h *harness) referralDeps() ReferralDeps {
	return ReferralDeps{
		Users:           h.users,
		NewReferralCode: internal.NewReferralCode,
		Duplicate:       userstore.ErrDuplicate,
		MetricInc:       h.inc,
		EmitAudit:       h.audit,
		GeneratedMetric: mReferralGenerated,
		GeneratedEvent:  "referral_generated",
	}
}

// seedUser stores an account with the given password hashed by the harness.
func (h *harness) seedUser(t *testing.T, username, email, pw string, staff bool) *userstore.User {
	t.Helper()
	hash, err := h.hasher.Hash(pw)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &userstore.User{
		Username:     username,
		Email:        email,
		Name:         username,
		PasswordHash: hash,
		IsStaff:      staff,
	}
	if err := h.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}
