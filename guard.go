package portalauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saberedu/portalauth/internal/audit"
	"github.com/saberedu/portalauth/internal/metrics"
	"github.com/saberedu/portalauth/permission"
	"github.com/saberedu/portalauth/session"
)

// MatchMode selects how a multi-key permission requirement combines.
type MatchMode uint8

const (
	// MatchAny allows when at least one required key is held.
	MatchAny MatchMode = iota
	// MatchAll allows only when every required key is held.
	MatchAll
)

// Guard is the authorization checkpoint. Every verdict first confirms the
// principal's session still exists; a revoked session denies even a
// cryptographically valid token, and even SYSTEM_ADMIN. Obtain one from
// [Service.Guard]; zero values are not usable.
type Guard struct {
	matrix   *permission.Matrix
	sessions *session.Store
	metrics  *metrics.Metrics
	audit    *audit.Dispatcher
	now      func() time.Time
}

// RequireRole allows when the principal's role is one of roles.
// SYSTEM_ADMIN passes any role requirement. An empty roles list denies
// everyone except SYSTEM_ADMIN.
func (g *Guard) RequireRole(ctx context.Context, p *Principal, roles ...permission.Role) error {
	if g == nil || g.sessions == nil {
		return ErrServiceNotReady
	}
	if p == nil {
		return ErrNoToken
	}
	if err := g.checkSession(ctx, p); err != nil {
		return err
	}

	if p.Role == permission.RoleSystemAdmin {
		return nil
	}
	for _, role := range roles {
		if p.Role == role {
			return nil
		}
	}

	g.metrics.Inc(metrics.GuardDeniedRole)
	g.deny(p, "role", roleNames(roles))
	return fmt.Errorf("%w: role %s is not in %v", ErrInsufficientRole, p.Role, roles)
}

// RequirePermission allows when the principal holds the required keys
// under mode. A key counts as held when the matrix grants it to the role
// or the token carried it explicitly. SYSTEM_ADMIN passes any permission
// requirement. An empty key list denies under MatchAny and allows under
// MatchAll.
func (g *Guard) RequirePermission(ctx context.Context, p *Principal, keys []string, mode MatchMode) error {
	if g == nil || g.sessions == nil {
		return ErrServiceNotReady
	}
	if p == nil {
		return ErrNoToken
	}
	if err := g.checkSession(ctx, p); err != nil {
		return err
	}

	if p.Role == permission.RoleSystemAdmin {
		return nil
	}

	var missing []string
	held := 0
	for _, key := range keys {
		if g.matrix.Has(p.Role, key) || p.Can(key) {
			held++
			continue
		}
		missing = append(missing, key)
	}

	allowed := false
	switch mode {
	case MatchAny:
		allowed = held > 0
	case MatchAll:
		allowed = len(missing) == 0
	}
	if allowed {
		return nil
	}

	g.metrics.Inc(metrics.GuardDeniedPermission)
	g.deny(p, "permission", strings.Join(missing, ","))
	return fmt.Errorf("%w: missing %v", ErrInsufficientPermissions, missing)
}

// checkSession enforces revocation. It runs before every other check,
// including the SYSTEM_ADMIN short-circuit: a logged-out admin is logged
// out. A principal without a session binding is treated as revoked; a
// store outage is reported as such and never as a revocation.
func (g *Guard) checkSession(ctx context.Context, p *Principal) error {
	if p.SessionID == "" {
		g.metrics.Inc(metrics.GuardDeniedRevoked)
		return fmt.Errorf("%w: token carries no session", ErrSessionRevoked)
	}

	ok, err := g.sessions.Exists(ctx, p.ID, p.SessionID)
	if err != nil {
		g.metrics.Inc(metrics.StoreUnavailable)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		g.metrics.Inc(metrics.GuardDeniedRevoked)
		g.deny(p, "session", "revoked")
		return fmt.Errorf("%w: %s", ErrSessionRevoked, p.SessionID)
	}
	return nil
}

func (g *Guard) deny(p *Principal, check, detail string) {
	g.audit.Emit(AuditEvent{
		Timestamp: g.now(),
		Action:    actionAuthzDeny,
		UserID:    p.ID,
		SessionID: p.SessionID,
		Success:   false,
		Metadata:  map[string]string{"check": check, "required": detail},
	})
}

func roleNames(roles []permission.Role) string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, ",")
}
