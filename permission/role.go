package permission

import "strings"

// Role identifies one of the portal's access levels. The set is closed:
// values outside the six constants below are rejected at the token boundary
// and never reach the guard.
type Role string

const (
	// RoleSystemAdmin supervises the whole platform and implicitly passes
	// every role and permission check.
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
	// RoleInstitutionManager administers a single institution.
	RoleInstitutionManager Role = "INSTITUTION_MANAGER"
	// RoleCoordinator oversees academic cycles and departments.
	RoleCoordinator Role = "COORDINATOR"
	// RoleTeacher manages assigned classes, grades, and attendance.
	RoleTeacher Role = "TEACHER"
	// RoleStudent accesses their own learning environment.
	RoleStudent Role = "STUDENT"
	// RoleGuardian follows the progress of students under their care.
	RoleGuardian Role = "GUARDIAN"
)

var allRoles = []Role{
	RoleSystemAdmin,
	RoleInstitutionManager,
	RoleCoordinator,
	RoleTeacher,
	RoleStudent,
	RoleGuardian,
}

// Roles returns the closed role set in a fixed order. The returned slice is
// a copy and safe to mutate.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole canonicalizes a role string. Comparison is case-insensitive and
// surrounding whitespace is ignored, but only the canonical upper-case form
// is ever returned: two casings of the same role never coexist past this
// boundary.
func ParseRole(s string) (Role, bool) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, r := range allRoles {
		if candidate == r {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether r is one of the closed role set in canonical form.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}
