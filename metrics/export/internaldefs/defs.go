package internaldefs

import (
	gatehouse "github.com/gatehouse-auth/gatehouse"
)

// CounterDef defines a public type used by gatehouse APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   gatehouse.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by gatehouse APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   gatehouse.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session engine.
var CounterDefs = []CounterDef{
	{ID: gatehouse.MetricLoginSuccess, Name: "gatehouse_login_success_total", Help: "Successful login attempts."},
	{ID: gatehouse.MetricLoginFailure, Name: "gatehouse_login_failure_total", Help: "Failed login attempts."},
	{ID: gatehouse.MetricLoginLocked, Name: "gatehouse_login_locked_total", Help: "Login attempts rejected by lockout."},
	{ID: gatehouse.MetricRefreshSuccess, Name: "gatehouse_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: gatehouse.MetricRefreshFailure, Name: "gatehouse_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: gatehouse.MetricRefreshReuseDetected, Name: "gatehouse_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: gatehouse.MetricVerifySuccess, Name: "gatehouse_verify_success_total", Help: "Successful access-token verifications."},
	{ID: gatehouse.MetricVerifyFailure, Name: "gatehouse_verify_failure_total", Help: "Failed access-token verifications."},
	{ID: gatehouse.MetricLogout, Name: "gatehouse_logout_total", Help: "Single-session logout operations."},
	{ID: gatehouse.MetricLogoutAll, Name: "gatehouse_logout_all_total", Help: "Logout-all operations."},
	{ID: gatehouse.MetricPasswordChangeSuccess, Name: "gatehouse_password_change_success_total", Help: "Successful password changes."},
	{ID: gatehouse.MetricPasswordChangeInvalidOld, Name: "gatehouse_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: gatehouse.MetricPasswordChangeReuseRejected, Name: "gatehouse_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: gatehouse.MetricPasswordResetRequest, Name: "gatehouse_password_reset_request_total", Help: "Password reset requests."},
	{ID: gatehouse.MetricPasswordResetConfirmSuccess, Name: "gatehouse_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: gatehouse.MetricPasswordResetConfirmFailure, Name: "gatehouse_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
}

// HistogramDefs is an exported constant or variable used by the session engine.
var HistogramDefs = []HistogramDef{
	{ID: gatehouse.MetricVerifyLatency, Name: "gatehouse_verify_latency_seconds", Help: "VerifyAccess latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session engine.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
