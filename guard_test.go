package portalauth

import (
	"context"
	"errors"
	"testing"

	"github.com/saberedu/portalauth/permission"
)

func authedPrincipal(t *testing.T, svc *Service, userID string, role permission.Role) *Principal {
	t.Helper()
	result := login(t, svc, userID, role)
	p, err := svc.Authenticate(context.Background(), "Bearer "+result.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return p
}

func TestRequireRoleAllowsMatching(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "u1", permission.RoleTeacher)

	if err := guard.RequireRole(context.Background(), p, permission.RoleTeacher, permission.RoleCoordinator); err != nil {
		t.Fatalf("matching role must pass: %v", err)
	}
	if err := guard.RequireRole(context.Background(), p, permission.RoleSystemAdmin); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("non-matching role: expected ErrInsufficientRole, got %v", err)
	}
}

func TestRequireRoleAdminBypass(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "root", permission.RoleSystemAdmin)

	if err := guard.RequireRole(context.Background(), p, permission.RoleGuardian); err != nil {
		t.Fatalf("SYSTEM_ADMIN must pass any role requirement: %v", err)
	}
	if err := guard.RequireRole(context.Background(), p); err != nil {
		t.Fatalf("SYSTEM_ADMIN must pass even an empty requirement: %v", err)
	}
}

func TestRequireRoleNilPrincipal(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()

	if err := guard.RequireRole(context.Background(), nil, permission.RoleStudent); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestRevokedSessionDeniesValidToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "u1", permission.RoleTeacher)

	if err := svc.Logout(context.Background(), p); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// The token is still cryptographically valid; the guard must deny anyway.
	err := guard.RequireRole(context.Background(), p, permission.RoleTeacher)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}

	err = guard.RequirePermission(context.Background(), p, []string{"grades.view"}, MatchAny)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("permission path must also deny: %v", err)
	}
}

func TestRevocationOverridesAdminBypass(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "root", permission.RoleSystemAdmin)

	if err := svc.Logout(context.Background(), p); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := guard.RequireRole(context.Background(), p, permission.RoleSystemAdmin); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("a logged-out admin is logged out, got %v", err)
	}
}

func TestPrincipalWithoutSessionIsRevoked(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()

	p := &Principal{ID: "u1", Role: permission.RoleTeacher}
	if err := guard.RequireRole(context.Background(), p, permission.RoleTeacher); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("sessionless principal must read as revoked, got %v", err)
	}
}

func TestStoreOutageIsNotRevocation(t *testing.T) {
	svc, _, mr := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "u1", permission.RoleTeacher)

	mr.Close()

	err := guard.RequireRole(context.Background(), p, permission.RoleTeacher)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrSessionRevoked) {
		t.Fatal("an outage must never read as a revocation")
	}
}

func TestRequirePermissionMatchModes(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "u1", permission.RoleTeacher)
	ctx := context.Background()

	if err := guard.RequirePermission(ctx, p, []string{"grades.edit", "users.delete"}, MatchAny); err != nil {
		t.Fatalf("ANY with one held key must pass: %v", err)
	}
	if err := guard.RequirePermission(ctx, p, []string{"grades.edit", "users.delete"}, MatchAll); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("ALL with one missing key must deny, got %v", err)
	}
	if err := guard.RequirePermission(ctx, p, []string{"grades.view", "grades.edit"}, MatchAll); err != nil {
		t.Fatalf("ALL with every key held must pass: %v", err)
	}

	// Empty requirement: ANY denies, ALL is vacuous.
	if err := guard.RequirePermission(ctx, p, nil, MatchAny); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("empty ANY must deny, got %v", err)
	}
	if err := guard.RequirePermission(ctx, p, nil, MatchAll); err != nil {
		t.Fatalf("empty ALL is vacuously allowed: %v", err)
	}
}

func TestRequirePermissionHonorsTokenExtras(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()

	result, err := svc.StartSession(context.Background(), StartSessionInput{
		UserID:      "u1",
		Email:       "u1@example.com",
		Role:        permission.RoleStudent,
		Permissions: []string{"beta.feature"},
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	p, err := svc.Authenticate(context.Background(), "Bearer "+result.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if err := guard.RequirePermission(context.Background(), p, []string{"beta.feature"}, MatchAll); err != nil {
		t.Fatalf("token-carried extras count as held: %v", err)
	}
}

func TestRequirePermissionAdminBypass(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "root", permission.RoleSystemAdmin)

	if err := guard.RequirePermission(context.Background(), p, []string{"anything.at.all"}, MatchAll); err != nil {
		t.Fatalf("SYSTEM_ADMIN must pass any permission requirement: %v", err)
	}
}

func TestGuardDenialMetrics(t *testing.T) {
	svc, _, _ := newTestService(t)
	guard := svc.Guard()
	p := authedPrincipal(t, svc, "u1", permission.RoleStudent)
	ctx := context.Background()

	_ = guard.RequireRole(ctx, p, permission.RoleTeacher)
	_ = guard.RequirePermission(ctx, p, []string{"users.delete"}, MatchAll)

	snap := svc.MetricsSnapshot()
	if snap.Counters["guard_denied_role"] != 1 || snap.Counters["guard_denied_permission"] != 1 {
		t.Fatalf("denials must be counted: %v", snap.Counters)
	}
}
