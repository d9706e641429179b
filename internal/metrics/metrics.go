// Package metrics implements the in-process counters and the authenticate
// latency histogram. All operations are lock-free; disabled metrics are
// no-ops so call sites never branch.
package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies one counter or histogram.
type ID uint16

const (
	AuthSuccess ID = iota
	AuthFailure
	AuthExpired
	AuthLegacyFallback
	SessionCreated
	SessionRevoked
	SessionTouched
	SessionTouchFailed
	Logout
	LogoutAll
	GuardDeniedRole
	GuardDeniedPermission
	GuardDeniedRevoked
	StoreUnavailable
	AuthLatency
	idCount
)

var names = [idCount]string{
	AuthSuccess:           "auth_success",
	AuthFailure:           "auth_failure",
	AuthExpired:           "auth_expired",
	AuthLegacyFallback:    "auth_legacy_fallback",
	SessionCreated:        "session_created",
	SessionRevoked:        "session_revoked",
	SessionTouched:        "session_touched",
	SessionTouchFailed:    "session_touch_failed",
	Logout:                "logout",
	LogoutAll:             "logout_all",
	GuardDeniedRole:       "guard_denied_role",
	GuardDeniedPermission: "guard_denied_permission",
	GuardDeniedRevoked:    "guard_denied_revoked",
	StoreUnavailable:      "store_unavailable",
	AuthLatency:           "auth_latency",
}

// Name returns the stable metric name for id.
func (id ID) Name() string {
	if id >= idCount {
		return "unknown"
	}
	return names[id]
}

// CounterIDs returns every counter metric in declaration order.
func CounterIDs() []ID {
	ids := make([]ID, 0, idCount-1)
	for id := ID(0); id < idCount; id++ {
		if id == AuthLatency {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

const (
	// BucketCount is the number of latency histogram buckets.
	BucketCount = 8
	cacheLine   = 64
)

// BucketBoundsMS are the upper bounds (milliseconds) of the first
// BucketCount-1 latency buckets; the final bucket is unbounded.
var BucketBoundsMS = [BucketCount - 1]float64{1, 2, 5, 10, 25, 50, 100}

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLine - 8]byte
}

// Config controls which instruments are live.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds the counters and histogram. A nil *Metrics is valid and
// inert.
type Metrics struct {
	enabled bool
	latency bool

	counters [idCount]paddedCounter
	buckets  [BucketCount]atomic.Uint64
	observed atomic.Uint64
}

// New creates a [Metrics] per cfg; returns nil when disabled.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{enabled: true, latency: cfg.EnableLatency}
}

// Inc bumps one counter.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	m.counters[id].value.Add(1)
}

// LatencyEnabled reports whether Observe does anything.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enabled && m.latency
}

// Observe records one authenticate latency sample.
func (m *Metrics) Observe(d time.Duration) {
	if !m.LatencyEnabled() {
		return
	}

	ms := float64(d) / float64(time.Millisecond)
	bucket := BucketCount - 1
	for i, bound := range BucketBoundsMS {
		if ms <= bound {
			bucket = i
			break
		}
	}
	m.buckets[bucket].Add(1)
	m.observed.Add(1)
}

// Snapshot is a point-in-time copy of all instruments.
type Snapshot struct {
	Counters       map[string]uint64
	LatencyBuckets [BucketCount]uint64
	LatencyCount   uint64
}

// Snapshot returns a consistent-enough copy for export (counters are read
// individually; cross-counter consistency is not guaranteed or needed).
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[string]uint64, idCount-1)}
	if m == nil || !m.enabled {
		return snap
	}

	for _, id := range CounterIDs() {
		snap.Counters[id.Name()] = m.counters[id].value.Load()
	}
	for i := range snap.LatencyBuckets {
		snap.LatencyBuckets[i] = m.buckets[i].Load()
	}
	snap.LatencyCount = m.observed.Load()
	return snap
}
