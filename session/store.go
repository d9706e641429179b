package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend/transport failure, including
// per-call timeouts. It is never returned for a plain miss.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorruptSession is returned when a stored blob no longer unmarshals.
var ErrCorruptSession = errors.New("corrupt session record")

const (
	// DefaultTTL is the fixed session window re-stated by every write.
	DefaultTTL = 15 * time.Minute
	// DefaultOpTimeout bounds each Redis round-trip.
	DefaultOpTimeout = 3 * time.Second
)

// Store is a Redis-backed session store. All methods are safe for
// concurrent use; the underlying client pools connections.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
	now       func() time.Time
}

// NewStore creates a [Store] on the given Redis client. prefix defaults to
// "session", ttl to [DefaultTTL], opTimeout to [DefaultOpTimeout].
func NewStore(rdb redis.UniversalClient, prefix string, ttl, opTimeout time.Duration) *Store {
	if prefix == "" {
		prefix = "session"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Store{
		redis:     rdb,
		prefix:    prefix,
		ttl:       ttl,
		opTimeout: opTimeout,
		now:       time.Now,
	}
}

// TTL returns the fixed window applied by every write.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(userID, sessionID string) string {
	return s.prefix + ":" + userID + ":" + sessionID
}

func (s *Store) userPattern(userID string) string {
	return s.prefix + ":" + userID + ":*"
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Save persists sess under the full TTL window.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(sess.UserID, sess.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get retrieves one session. A miss is redis.Nil; a record whose own
// expiresAt has passed is deleted best-effort and also reported as
// redis.Nil.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.redis.Get(opCtx, s.key(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	sess.SessionID = sessionID

	if sess.ExpiresAt > 0 && sess.ExpiresAt <= s.now().Unix() {
		_ = s.Delete(ctx, userID, sessionID)
		return nil, redis.Nil
	}

	return &sess, nil
}

// Touch refreshes a session's liveness: lastAccess moves to now, expiresAt
// and the store TTL are reset to one full window. The window never
// accumulates. Returns the updated record, or redis.Nil when the session
// is gone.
func (s *Store) Touch(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	sess.LastAccess = now
	sess.ExpiresAt = now + int64(s.ttl/time.Second)

	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Exists reports whether the session record is present, without mutating
// TTL or payload.
func (s *Store) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.key(userID, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes one session. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, s.key(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session of one user and returns how many
// were deleted. SCAN-based; this is a logout-all/admin operation, not a
// request hot path.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	keys, err := s.scanUserKeys(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	deleted, err := s.redis.Del(opCtx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(deleted), nil
}

// ActiveSessionIDs lists the session IDs currently stored for a user.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	keys, err := s.scanUserKeys(ctx, userID)
	if err != nil {
		return nil, err
	}

	strip := s.prefix + ":" + userID + ":"
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, strip))
	}
	return ids, nil
}

func (s *Store) scanUserKeys(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, s.userPattern(userID), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Ping returns a point-in-time availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
