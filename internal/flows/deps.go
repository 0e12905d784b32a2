package flows

import "context"

// Deps groups flow dependency sets. The engine builds this once and delegates
// each operation to the matching Run function.
type Deps struct {
	Login    LoginDeps
	Signup   SignupDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Identity IdentityDeps
	Referral ReferralDeps
}

// AuditFunc emits one audit event. meta is evaluated only when auditing is on.
type AuditFunc func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopWarn(string, ...any) {}

func noIP(context.Context) string { return "" }
