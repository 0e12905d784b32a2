package shopauth

import "errors"

var (
	// ErrUnauthorized is returned by Me for any token that does not resolve
	// to a live session and account.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials means the identifier or password did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminDenied is returned by AdminLogin for bad credentials and for
	// valid credentials of a non-staff account alike.
	ErrAdminDenied = errors.New("admin access denied")
	// ErrUserNotFound means the account referenced by an id no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited means the identifier or client IP used up its
	// failed-login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited means the session refreshed too often.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrAccountExists means the username or email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountCreationInvalid means a required signup field was empty.
	ErrAccountCreationInvalid = errors.New("invalid account creation request")
	// ErrAccountCreationRateLimited means the client IP created too many accounts.
	ErrAccountCreationRateLimited = errors.New("account creation rate limited")
	// ErrAccountCreationUnavailable wraps user store failures during signup.
	ErrAccountCreationUnavailable = errors.New("account creation backend unavailable")
	// ErrPasswordPolicy means the password was rejected before hashing.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrSessionCreationFailed wraps failures minting a session or its tokens.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed wraps Redis failures during logout.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrRefreshInvalid means the refresh token is malformed, unknown or expired.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse means a rotated-out refresh secret was presented. The
	// session has been revoked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrPermissionDenied is returned by staff-only operations.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrReferralUnavailable means no fresh referral code could be allocated.
	ErrReferralUnavailable = errors.New("referral code unavailable")
	// ErrBackendUnavailable wraps Redis and database failures that are not
	// attributable to the caller.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned by methods on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
