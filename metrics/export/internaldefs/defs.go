package internaldefs

import (
	"github.com/MrEthical07/shopauth"
)

type CounterDef struct {
	ID   shopauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   shopauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: shopauth.MetricLoginSuccess, Name: "shopauth_login_success_total", Help: "Successful login attempts."},
	{ID: shopauth.MetricLoginFailure, Name: "shopauth_login_failure_total", Help: "Failed login attempts."},
	{ID: shopauth.MetricLoginRateLimited, Name: "shopauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: shopauth.MetricAdminDenied, Name: "shopauth_admin_denied_total", Help: "Admin logins refused for non-staff accounts."},
	{ID: shopauth.MetricSignupSuccess, Name: "shopauth_signup_success_total", Help: "Created accounts."},
	{ID: shopauth.MetricSignupDuplicate, Name: "shopauth_signup_duplicate_total", Help: "Signups rejected as duplicate."},
	{ID: shopauth.MetricSignupRateLimited, Name: "shopauth_signup_rate_limited_total", Help: "Rate-limited signups."},
	{ID: shopauth.MetricReferralApplied, Name: "shopauth_referral_applied_total", Help: "Referral codes redeemed at signup."},
	{ID: shopauth.MetricReferralGenerated, Name: "shopauth_referral_generated_total", Help: "Referral codes issued on request."},
	{ID: shopauth.MetricRefreshSuccess, Name: "shopauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: shopauth.MetricRefreshFailure, Name: "shopauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: shopauth.MetricRefreshReuseDetected, Name: "shopauth_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: shopauth.MetricRefreshRateLimited, Name: "shopauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: shopauth.MetricSessionCreated, Name: "shopauth_session_created_total", Help: "Created sessions."},
	{ID: shopauth.MetricSessionInvalidated, Name: "shopauth_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: shopauth.MetricLogout, Name: "shopauth_logout_total", Help: "Single-session logout operations."},
	{ID: shopauth.MetricLogoutAll, Name: "shopauth_logout_all_total", Help: "Logout-all operations."},
}

var HistogramDefs = []HistogramDef{
	{ID: shopauth.MetricMeLatency, Name: "shopauth_me_latency_seconds", Help: "Identity lookup latency."},
}

// AuditDroppedName is the counter for events discarded by the audit dispatcher.
const (
	AuditDroppedName = "shopauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds; the last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw engine buckets to eight entries.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
