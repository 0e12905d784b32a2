package shopauth

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/shopauth/internal/audit"
	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/MrEthical07/shopauth/session"
	"github.com/MrEthical07/shopauth/userstore"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventAdminLoginDenied     = "admin_login_denied"
	auditEventSignupSuccess        = "signup_success"
	auditEventSignupDuplicate      = "signup_duplicate"
	auditEventSignupRateLimited    = "signup_rate_limited"
	auditEventReferralApplied      = "referral_applied"
	auditEventReferralGenerated    = "referral_generated"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshRateLimited   = "refresh_rate_limited"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized          AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrAdminDenied           AuditErrorCode = "admin_denied"
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrRefreshReuse          AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken          AuditErrorCode = "invalid_token"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy        AuditErrorCode = "password_policy"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrSessionInvalidation   AuditErrorCode = "session_invalidation_failed"
	auditErrDuplicate             AuditErrorCode = "duplicate"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

// emitAudit matches flows.AuditFunc so flows can call it directly.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := internalaudit.NewEvent(eventType, success)
	event.UserID = userID
	event.SessionID = sessionID
	event.IP = clientIPFromContext(ctx)
	event.Metadata = metadata
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAdminDenied):
		return auditErrAdminDenied
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrAccountCreationRateLimited),
		errors.Is(err, rate.ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRefreshReuse),
		errors.Is(err, session.ErrRefreshHashMismatch):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, userstore.ErrNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, userstore.ErrDuplicate):
		return auditErrDuplicate
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, ErrAccountCreationUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, session.ErrRedisUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
