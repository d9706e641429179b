package permission

import "testing"

func TestParseRoleCanonicalizes(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"SYSTEM_ADMIN", RoleSystemAdmin, true},
		{"system_admin", RoleSystemAdmin, true},
		{"  Teacher ", RoleTeacher, true},
		{"gUaRdIaN", RoleGuardian, true},
		{"STUDENT", RoleStudent, true},
		{"", "", false},
		{"ADMIN", "", false},
		{"TEACHER_", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseRole(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRolesReturnsCopy(t *testing.T) {
	roles := Roles()
	if len(roles) != 6 {
		t.Fatalf("expected 6 roles, got %d", len(roles))
	}
	roles[0] = "MUTATED"
	if Roles()[0] != RoleSystemAdmin {
		t.Fatal("Roles() must return a defensive copy")
	}
}

func TestValidRejectsNonCanonicalForm(t *testing.T) {
	if Role("teacher").Valid() {
		t.Fatal("lower-case role must not be valid; ParseRole is the boundary")
	}
	if !RoleTeacher.Valid() {
		t.Fatal("canonical role must be valid")
	}
}
