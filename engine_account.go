package shopauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/shopauth/internal"
	"github.com/MrEthical07/shopauth/internal/flows"
	"github.com/MrEthical07/shopauth/userstore"
)

// Signup creates an account. A referral code issued by another account and
// not yet redeemed grants both parties coins; any other code is ignored.
// With Account.AutoLogin set the result carries a fresh session.
//
// When the account is created but the session cannot be opened, Signup
// returns both the result and an error wrapping ErrSessionCreationFailed.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunSignup(ctx, flows.SignupRequest{
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	}, e.flows.Signup)

	switch res.Failure {
	case flows.SignupFailureNone, flows.SignupFailureSession:
	case flows.SignupFailureInvalid:
		return nil, ErrAccountCreationInvalid
	case flows.SignupFailureRateLimited:
		return nil, ErrAccountCreationRateLimited
	case flows.SignupFailureDuplicate:
		return nil, ErrAccountExists
	case flows.SignupFailurePasswordPolicy:
		return nil, ErrPasswordPolicy
	default:
		return nil, fmt.Errorf("%w: %v", ErrAccountCreationUnavailable, res.Err)
	}

	out := &SignupResult{
		Identity:        identityFromUser(res.User),
		ReferralApplied: res.ReferralApplied,
		SessionID:       res.Tokens.SessionID,
		AccessToken:     res.Tokens.AccessToken,
		RefreshToken:    res.Tokens.RefreshToken,
	}
	if res.ReferralApplied {
		out.CoinsEarned = e.config.Referral.NewUserReward
	}

	if res.Failure == flows.SignupFailureSession {
		return out, fmt.Errorf("%w: %v", ErrSessionCreationFailed, res.Err)
	}
	if out.SessionID != "" {
		e.emitAudit(ctx, auditEventLoginSuccess, true, out.Identity.UserID(), out.SessionID, nil, func() map[string]string {
			return map[string]string{"via": "signup"}
		})
	}
	return out, nil
}

// Wallet returns the coin balance of the account.
func (e *Engine) Wallet(ctx context.Context, userID int64) (Wallet, error) {
	if e == nil || e.users == nil {
		return Wallet{}, ErrEngineNotReady
	}

	coins, err := e.users.Coins(ctx, userID)
	if err != nil {
		return Wallet{}, e.userStoreError(err)
	}
	return Wallet{Coins: coins}, nil
}

// GenerateReferral issues a new single-use referral code owned by the
// account, along with a WhatsApp share link.
func (e *Engine) GenerateReferral(ctx context.Context, userID int64) (Referral, error) {
	if e == nil || e.users == nil {
		return Referral{}, ErrEngineNotReady
	}

	res, err := flows.RunGenerateReferral(ctx, userID, e.flows.Referral)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicate) {
			return Referral{}, ErrReferralUnavailable
		}
		return Referral{}, e.userStoreError(err)
	}
	return Referral{Code: res.Code, WhatsAppURL: res.WhatsAppURL}, nil
}

// ListUsers returns every account, oldest first. The caller must be staff.
func (e *Engine) ListUsers(ctx context.Context, adminID int64) ([]Identity, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	admin, err := e.users.ByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, ErrPermissionDenied
		}
		return nil, e.userStoreError(err)
	}
	if !admin.IsStaff {
		return nil, ErrPermissionDenied
	}

	users, err := e.users.List(ctx)
	if err != nil {
		return nil, e.userStoreError(err)
	}

	out := make([]Identity, 0, len(users))
	for i := range users {
		out = append(out, identityFromUser(&users[i]))
	}
	return out, nil
}

func (e *Engine) userStoreError(err error) error {
	if errors.Is(err, userstore.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// EnsureAdmin creates a staff account unless the username is already taken.
// It reports whether an account was created.
func (e *Engine) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if e == nil || e.users == nil || e.passwordHash == nil {
		return false, ErrEngineNotReady
	}
	if username == "" || password == "" {
		return false, ErrAccountCreationInvalid
	}

	if _, err := e.users.ByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, userstore.ErrNotFound) {
		return false, e.userStoreError(err)
	}

	hash, err := e.passwordHash.Hash(password)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	code, err := internal.NewReferralCode(username)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAccountCreationUnavailable, err)
	}

	u := &userstore.User{
		Username:     username,
		Email:        email,
		Name:         username,
		PasswordHash: hash,
		IsStaff:      true,
		ReferralCode: code,
	}
	if err := e.users.Create(ctx, u); err != nil {
		if errors.Is(err, userstore.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrAccountCreationUnavailable, err)
	}
	return true, nil
}
