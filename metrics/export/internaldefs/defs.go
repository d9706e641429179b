// Package internaldefs holds the metric definitions shared by the
// Prometheus and OTel exporters: stable names, help strings, and the
// latency histogram's bucket layout.
package internaldefs

// CounterDef describes one exported counter.
type CounterDef struct {
	// Key is the counter's name inside a snapshot.
	Key string
	// Name is the fully qualified exported metric name.
	Name string
	Help string
}

// CounterDefs lists every exported counter in stable order.
var CounterDefs = []CounterDef{
	{"auth_success", "portalauth_auth_success_total", "Successful token authentications."},
	{"auth_failure", "portalauth_auth_failure_total", "Failed token authentications, expiry excluded."},
	{"auth_expired", "portalauth_auth_expired_total", "Authentications rejected for token expiry."},
	{"auth_legacy_fallback", "portalauth_auth_legacy_fallback_total", "Authentications served through the unsigned legacy decoder."},
	{"session_created", "portalauth_session_created_total", "Sessions created at login."},
	{"session_revoked", "portalauth_session_revoked_total", "Sessions revoked administratively."},
	{"session_touched", "portalauth_session_touched_total", "Successful session heartbeat touches."},
	{"session_touch_failed", "portalauth_session_touch_failed_total", "Heartbeat touches against missing sessions."},
	{"logout", "portalauth_logout_total", "Single-session logouts."},
	{"logout_all", "portalauth_logout_all_total", "All-session logouts."},
	{"guard_denied_role", "portalauth_guard_denied_role_total", "Authorization denials on role requirements."},
	{"guard_denied_permission", "portalauth_guard_denied_permission_total", "Authorization denials on permission requirements."},
	{"guard_denied_revoked", "portalauth_guard_denied_revoked_total", "Authorization denials for revoked sessions."},
	{"store_unavailable", "portalauth_store_unavailable_total", "Operations failed by session store or directory outages."},
}

// LatencyName is the exported name of the authenticate latency histogram.
const LatencyName = "portalauth_authenticate_latency_seconds"

// LatencyHelp describes the histogram.
const LatencyHelp = "Authenticate call latency."

// LatencyBounds are the le label values of the cumulative buckets,
// matching the core's millisecond bucket layout expressed in seconds.
var LatencyBounds = [8]string{"0.001", "0.002", "0.005", "0.01", "0.025", "0.05", "0.1", "+Inf"}

// LatencyBoundSuffix gives OTel-safe instrument name suffixes for each
// bucket bound.
var LatencyBoundSuffix = [8]string{"0_001", "0_002", "0_005", "0_01", "0_025", "0_05", "0_1", "inf"}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// both exposition formats expect.
func CumulativeBuckets(buckets [8]uint64) [8]uint64 {
	var out [8]uint64
	var sum uint64
	for i, v := range buckets {
		sum += v
		out[i] = sum
	}
	return out
}
