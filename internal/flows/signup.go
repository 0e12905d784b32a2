package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/shopauth/userstore"
)

// SignupFailureKind classifies signup failures for root-level mapping.
type SignupFailureKind int

const (
	SignupFailureNone SignupFailureKind = iota
	SignupFailureInvalid
	SignupFailureRateLimited
	SignupFailureDuplicate
	SignupFailurePasswordPolicy
	SignupFailureBackend
	SignupFailureSession
)

type SignupRequest struct {
	Name         string
	Email        string
	Username     string
	Password     string
	ReferralCode string
}

type SignupResult struct {
	Failure         SignupFailureKind
	Err             error
	User            *userstore.User
	Tokens          IssuedSession
	ReferralApplied bool
}

type SignupUserStore interface {
	Create(ctx context.Context, u *userstore.User) error
	ByUsername(ctx context.Context, username string) (*userstore.User, error)
	ByEmail(ctx context.Context, email string) (*userstore.User, error)
	CreateReferral(ctx context.Context, ownerID int64, code string) error
	RedeemReferral(ctx context.Context, code string, newUserID int64, reward userstore.Reward) (int64, error)
}

type SignupMetrics struct {
	Success         int
	Duplicate       int
	RateLimited     int
	ReferralApplied int
	SessionCreated  int
}

type SignupEvents struct {
	Success         string
	Duplicate       string
	RateLimited     string
	ReferralApplied string
}

type SignupDeps struct {
	AutoLogin bool
	Reward    userstore.Reward

	ClientIPFromContext func(context.Context) string
	CheckSignupRate     func(ctx context.Context, ip string) error
	Users               SignupUserStore

	HashPassword    func(string) (string, error)
	PasswordPolicy  error
	NewReferralCode func(name string) (string, error)

	Issuer SessionIssuer

	UserNotFound        error
	Duplicate           error
	ReferralUnavailable error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics SignupMetrics
	Events  SignupEvents
}

func (d *SignupDeps) defaults() {
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

// RunSignup creates an account, gives it its own referral code and applies
// the referral code it signed up with. Unknown or spent codes are ignored.
func RunSignup(ctx context.Context, req SignupRequest, deps SignupDeps) SignupResult {
	deps.defaults()

	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ReferralCode = strings.ToUpper(strings.TrimSpace(req.ReferralCode))

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return SignupResult{Failure: SignupFailureInvalid}
	}

	meta := func() map[string]string {
		return map[string]string{"username": req.Username}
	}

	if deps.CheckSignupRate != nil {
		if err := deps.CheckSignupRate(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", "", err, meta)
			return SignupResult{Failure: SignupFailureRateLimited, Err: err}
		}
	}

	if taken, err := signupIdentityTaken(ctx, deps, req); err != nil {
		return SignupResult{Failure: SignupFailureBackend, Err: err}
	} else if taken {
		return signupDuplicate(ctx, deps, meta)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		if deps.PasswordPolicy != nil && errors.Is(err, deps.PasswordPolicy) {
			return SignupResult{Failure: SignupFailurePasswordPolicy, Err: err}
		}
		return SignupResult{Failure: SignupFailureBackend, Err: err}
	}

	codeSeed := req.Name
	if codeSeed == "" {
		codeSeed = req.Username
	}
	ownCode, err := deps.NewReferralCode(codeSeed)
	if err != nil {
		return SignupResult{Failure: SignupFailureBackend, Err: err}
	}

	user := &userstore.User{
		Username:     req.Username,
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		ReferralCode: ownCode,
	}
	if err := deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, deps.Duplicate) {
			return signupDuplicate(ctx, deps, meta)
		}
		return SignupResult{Failure: SignupFailureBackend, Err: err}
	}
	userID := strconv.FormatInt(user.ID, 10)

	if err := deps.Users.CreateReferral(ctx, user.ID, ownCode); err != nil {
		deps.Warn("shopauth: registering signup referral code failed", "user_id", user.ID, "error", err)
	}

	result := SignupResult{User: user}

	if req.ReferralCode != "" {
		referrerID, err := deps.Users.RedeemReferral(ctx, req.ReferralCode, user.ID, deps.Reward)
		switch {
		case err == nil:
			result.ReferralApplied = true
			user.Coins += deps.Reward.NewUser
			user.ReferredBy = &referrerID
			deps.MetricInc(deps.Metrics.ReferralApplied)
			deps.EmitAudit(ctx, deps.Events.ReferralApplied, true, userID, "", nil, func() map[string]string {
				return map[string]string{
					"code":        req.ReferralCode,
					"referrer_id": strconv.FormatInt(referrerID, 10),
				}
			})
		case errors.Is(err, deps.ReferralUnavailable):
		default:
			deps.Warn("shopauth: referral redemption failed", "code", req.ReferralCode, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, userID, "", nil, meta)

	if !deps.AutoLogin {
		return result
	}

	tokens, err := deps.Issuer.Issue(ctx, user)
	if err != nil {
		result.Failure = SignupFailureSession
		result.Err = err
		return result
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	result.Tokens = tokens
	return result
}

func signupIdentityTaken(ctx context.Context, deps SignupDeps, req SignupRequest) (bool, error) {
	if _, err := deps.Users.ByUsername(ctx, req.Username); err == nil {
		return true, nil
	} else if !errors.Is(err, deps.UserNotFound) {
		return false, err
	}
	if _, err := deps.Users.ByEmail(ctx, req.Email); err == nil {
		return true, nil
	} else if !errors.Is(err, deps.UserNotFound) {
		return false, err
	}
	return false, nil
}

func signupDuplicate(ctx context.Context, deps SignupDeps, meta func() map[string]string) SignupResult {
	deps.MetricInc(deps.Metrics.Duplicate)
	deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", "", deps.Duplicate, meta)
	return SignupResult{Failure: SignupFailureDuplicate, Err: deps.Duplicate}
}
