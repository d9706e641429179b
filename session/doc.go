// Package session persists server-side login records in Redis.
//
// Each record lives under session:{userId}:{sessionId} as a JSON blob with
// a fixed-window TTL: every write re-states the full window instead of
// extending whatever remains, so a session that stops being touched
// disappears deterministically after one window. That TTL is the sole
// expiry mechanism for idle sessions; there is no background sweep.
//
// Misses and outages are kept distinct throughout: a missing record is
// redis.Nil, a backend/transport failure wraps [ErrRedisUnavailable].
// Callers must not collapse the two: an outage is a transient 5xx, not a
// reason to treat a caller as logged out.
//
// Every operation runs under the store's own per-call timeout; a timed-out
// call classifies as unavailable and is never retried here.
package session
