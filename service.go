package portalauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/saberedu/portalauth/internal/audit"
	"github.com/saberedu/portalauth/internal/metrics"
	"github.com/saberedu/portalauth/permission"
	"github.com/saberedu/portalauth/session"
	"github.com/saberedu/portalauth/token"
)

// Audit action names. Stable identifiers; log pipelines key on them.
const (
	actionAuthValidate = "auth.validate"
	actionSessionStart = "session.start"
	actionSessionTouch = "session.touch"
	actionLogout       = "session.logout"
	actionLogoutAll    = "session.logout_all"
	actionAuthzDeny    = "authz.deny"
)

// Service is the authentication core: it verifies tokens into Principals
// and manages the session lifecycle around them. Construct once at
// startup, share across all request handlers.
type Service struct {
	codec    *token.Codec
	sessions *session.Store
	matrix   *permission.Matrix
	users    UserDirectory

	audit   *audit.Dispatcher
	metrics *metrics.Metrics

	now func() time.Time
}

// NewService validates cfg and wires a [Service] on the given Redis
// client and user directory. rdb and users must be non-nil.
func NewService(cfg Config, rdb redis.UniversalClient, users UserDirectory) (*Service, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, errors.New("portalauth: nil redis client")
	}
	if users == nil {
		return nil, errors.New("portalauth: nil user directory")
	}

	codec, err := token.NewCodec(cfg.tokenConfig())
	if err != nil {
		return nil, err
	}

	matrix := permission.Default()
	if cfg.Permission.Grants != nil {
		matrix, err = permission.NewMatrix(cfg.Permission.Grants)
		if err != nil {
			return nil, err
		}
	}

	return &Service{
		codec:    codec,
		sessions: session.NewStore(rdb, cfg.Session.KeyPrefix, cfg.Session.TTL, cfg.Session.OpTimeout),
		matrix:   matrix,
		users:    users,
		audit:    audit.NewDispatcher(cfg.auditConfig(), cfg.Audit.Sink),
		metrics:  metrics.New(cfg.metricsConfig()),
		now:      time.Now,
	}, nil
}

// Close drains and stops the audit dispatcher. The Redis client is owned
// by the caller and is not closed.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// Guard returns the authorization guard bound to this service's matrix
// and session store.
func (s *Service) Guard() *Guard {
	return &Guard{
		matrix:   s.matrix,
		sessions: s.sessions,
		metrics:  s.metrics,
		audit:    s.audit,
		now:      s.now,
	}
}

// Sessions exposes the underlying session store for administrative
// operations (listing active sessions, health pings).
func (s *Service) Sessions() *session.Store {
	return s.sessions
}

// Matrix exposes the role→permission table for introspection endpoints.
func (s *Service) Matrix() *permission.Matrix {
	return s.matrix
}

// bearerToken extracts the credential from an Authorization header value.
// The "Bearer " prefix is matched case-insensitively; a bare token without
// the prefix is also accepted.
func bearerToken(authorization string) (string, error) {
	value := strings.TrimSpace(authorization)
	if value == "" {
		return "", ErrNoToken
	}
	if len(value) > 7 && strings.EqualFold(value[:7], "Bearer ") {
		value = strings.TrimSpace(value[7:])
	}
	if value == "" {
		return "", ErrNoToken
	}
	return value, nil
}

// Authenticate turns an Authorization header value into an authenticated
// [*Principal]. It verifies the token (signed first, legacy fallback),
// requires it to be an access token, checks that the account is still
// enabled, and merges matrix grants into the principal's permission set.
//
// It does not consult the session store; revocation is enforced by
// [Guard] at authorization time.
func (s *Service) Authenticate(ctx context.Context, authorization string) (*Principal, error) {
	if s == nil || s.codec == nil {
		return nil, ErrServiceNotReady
	}
	start := s.now()

	p, err := s.authenticate(ctx, authorization)
	if s.metrics.LatencyEnabled() {
		s.metrics.Observe(s.now().Sub(start))
	}
	if err != nil {
		s.recordAuthFailure(err)
		return nil, err
	}

	s.metrics.Inc(metrics.AuthSuccess)
	s.audit.Emit(AuditEvent{
		Timestamp: s.now(),
		Action:    actionAuthValidate,
		UserID:    p.ID,
		SessionID: p.SessionID,
		Success:   true,
	})
	return p, nil
}

func (s *Service) authenticate(ctx context.Context, authorization string) (*Principal, error) {
	raw, err := bearerToken(authorization)
	if err != nil {
		return nil, err
	}

	claims, err := s.codec.Decode(raw)
	if err != nil {
		return nil, mapDecodeError(err)
	}
	if claims.TokenType != token.TypeAccess {
		return nil, fmt.Errorf("%w: %s token used as access token", ErrTokenInvalid, claims.TokenType)
	}

	role, ok := permission.ParseRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenMalformed, claims.Role)
	}

	status, err := s.users.UserStatus(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user directory: %v", ErrStoreUnavailable, err)
	}
	if status != UserActive {
		return nil, fmt.Errorf("%w: user %s", ErrUserDisabled, claims.UserID)
	}

	if claims.Legacy {
		s.metrics.Inc(metrics.AuthLegacyFallback)
	}

	return &Principal{
		ID:            claims.UserID,
		Email:         claims.Email,
		Name:          claims.Name,
		Role:          role,
		Permissions:   mergePermissions(s.matrix.Grants(role), claims.Permissions),
		InstitutionID: claims.InstitutionID,
		SessionID:     claims.SessionID,
	}, nil
}

// OptionalAuthenticate is Authenticate for endpoints that serve both
// anonymous and authenticated callers: every failure, including an absent
// header, yields (nil, nil). Store outages are the one exception and are
// still reported.
func (s *Service) OptionalAuthenticate(ctx context.Context, authorization string) (*Principal, error) {
	p, err := s.Authenticate(ctx, authorization)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrServiceNotReady) {
			return nil, err
		}
		return nil, nil
	}
	return p, nil
}

func mapDecodeError(err error) error {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, token.ErrExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

func (s *Service) recordAuthFailure(err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		s.metrics.Inc(metrics.AuthExpired)
	case errors.Is(err, ErrStoreUnavailable):
		s.metrics.Inc(metrics.StoreUnavailable)
	default:
		s.metrics.Inc(metrics.AuthFailure)
	}
	s.audit.Emit(AuditEvent{
		Timestamp: s.now(),
		Action:    actionAuthValidate,
		Success:   false,
		Error:     ErrorCode(err),
	})
}

// mergePermissions unions matrix grants with token-carried extras,
// preserving sorted matrix order first and deduplicating.
func mergePermissions(granted, extra []string) []string {
	if len(extra) == 0 {
		return granted
	}
	seen := make(map[string]bool, len(granted)+len(extra))
	out := make([]string, 0, len(granted)+len(extra))
	for _, key := range granted {
		if key != "" && !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for _, key := range extra {
		if key != "" && !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// StartSession creates a session record for an already-verified login and
// issues the token pair bound to it. Credential verification is the user
// directory's job and must have happened before this call.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*LoginResult, error) {
	if in.UserID == "" || in.Email == "" {
		return nil, errors.New("portalauth: start session requires user id and email")
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("portalauth: unknown role %q", in.Role)
	}

	sessionID := uuid.NewString()
	now := s.now().Unix()

	sess := &session.Session{
		SessionID:  sessionID,
		UserID:     in.UserID,
		Email:      in.Email,
		Role:       string(in.Role),
		CreatedAt:  now,
		LastAccess: now,
		ExpiresAt:  now + int64(s.sessions.TTL()/time.Second),
		DeviceInfo: in.DeviceInfo,
		IPAddress:  in.IPAddress,
		IsActive:   true,
		LoginCount: 1,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.metrics.Inc(metrics.StoreUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	issue := token.IssueInput{
		UserID:        in.UserID,
		Email:         in.Email,
		Name:          in.Name,
		Role:          string(in.Role),
		Permissions:   in.Permissions,
		InstitutionID: in.InstitutionID,
		SessionID:     sessionID,
	}
	access, err := s.codec.IssueAccess(issue)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefresh(issue)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(metrics.SessionCreated)
	s.audit.Emit(AuditEvent{
		Timestamp: s.now(),
		Action:    actionSessionStart,
		UserID:    in.UserID,
		SessionID: sessionID,
		IP:        in.IPAddress,
		Success:   true,
	})

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Touch refreshes a session's liveness window and returns the updated
// record. A missing or expired session is [ErrSessionNotFound]; a store
// outage is [ErrStoreUnavailable].
func (s *Service) Touch(ctx context.Context, userID, sessionID string) (*session.Session, error) {
	if userID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: missing user or session id", ErrSessionNotFound)
	}

	sess, err := s.sessions.Touch(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.metrics.Inc(metrics.SessionTouchFailed)
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		s.metrics.Inc(metrics.StoreUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metrics.Inc(metrics.SessionTouched)
	s.audit.Emit(AuditEvent{
		Timestamp: s.now(),
		Action:    actionSessionTouch,
		UserID:    userID,
		SessionID: sessionID,
		Success:   true,
	})
	return sess, nil
}

// Logout revokes the principal's own session. A token without a session
// binding (some legacy tokens) is a successful no-op.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if p == nil {
		return ErrNoToken
	}
	if p.SessionID == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, p.ID, p.SessionID); err != nil {
		s.metrics.Inc(metrics.StoreUnavailable)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metrics.Inc(metrics.Logout)
	s.metrics.Inc(metrics.SessionRevoked)
	s.audit.Emit(AuditEvent{
		Timestamp: s.now(),
		Action:    actionLogout,
		UserID:    p.ID,
		SessionID: p.SessionID,
		Success:   true,
	})
	return nil
}

// LogoutAll revokes every session of one user and reports how many were
// removed. Zero is success, not an error.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("portalauth: logout all requires a user id")
	}

	n, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.metrics.Inc(metrics.StoreUnavailable)
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metrics.Inc(metrics.LogoutAll)
	for i := 0; i < n; i++ {
		s.metrics.Inc(metrics.SessionRevoked)
	}
	s.audit.Emit(AuditEvent{
		Timestamp: s.now(),
		Action:    actionLogoutAll,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"revoked": fmt.Sprintf("%d", n)},
	})
	return n, nil
}

// MetricsSnapshot returns a point-in-time copy of the service's counters
// and latency histogram, for exporters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (s *Service) AuditDropped() uint64 {
	return s.audit.Dropped()
}
