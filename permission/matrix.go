package permission

import (
	"errors"
	"fmt"
	"sort"
)

// Matrix is the static role→permission table. It is immutable after
// construction and safe for unrestricted concurrent reads.
type Matrix struct {
	grants map[Role]map[string]bool
	keys   []string
}

// NewMatrix builds a frozen [Matrix] from per-role grant lists. Unknown
// roles and empty permission keys are construction errors; this is the one
// place where misconfiguration is allowed to fail loudly, so that it aborts
// process startup instead of surfacing per-request.
func NewMatrix(grants map[Role][]string) (*Matrix, error) {
	m := &Matrix{grants: make(map[Role]map[string]bool, len(grants))}

	keySet := make(map[string]bool)
	for role, keys := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("permission matrix: unknown role %q", role)
		}
		set := make(map[string]bool, len(keys))
		for _, key := range keys {
			if key == "" {
				return nil, errors.New("permission matrix: empty permission key")
			}
			set[key] = true
			keySet[key] = true
		}
		m.grants[role] = set
	}

	m.keys = make([]string, 0, len(keySet))
	for key := range keySet {
		m.keys = append(m.keys, key)
	}
	sort.Strings(m.keys)

	return m, nil
}

// Has reports whether role holds the named permission. [RoleSystemAdmin]
// short-circuits to true for every key; an absent role or key is false,
// never an error.
func (m *Matrix) Has(role Role, key string) bool {
	if role == RoleSystemAdmin {
		return true
	}
	return m.grants[role][key]
}

// HasAny reports whether role holds at least one of the keys. An empty key
// list is false for every role except [RoleSystemAdmin].
func (m *Matrix) HasAny(role Role, keys ...string) bool {
	if role == RoleSystemAdmin {
		return true
	}
	for _, key := range keys {
		if m.grants[role][key] {
			return true
		}
	}
	return false
}

// HasAll reports whether role holds every one of the keys. An empty key
// list is vacuously true.
func (m *Matrix) HasAll(role Role, keys ...string) bool {
	if role == RoleSystemAdmin {
		return true
	}
	for _, key := range keys {
		if !m.grants[role][key] {
			return false
		}
	}
	return true
}

// Grants returns the sorted permission keys granted to role. SYSTEM_ADMIN
// reports the full key universe. The returned slice is a copy.
func (m *Matrix) Grants(role Role) []string {
	if role == RoleSystemAdmin {
		return m.Keys()
	}

	set := m.grants[role]
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Keys returns every permission key known to the matrix, sorted. The
// returned slice is a copy.
func (m *Matrix) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Default returns the portal's built-in role→permission table.
func Default() *Matrix {
	m, err := NewMatrix(defaultGrants)
	if err != nil {
		// defaultGrants is compile-time data; failing here is a bug.
		panic(err)
	}
	return m
}

var defaultGrants = map[Role][]string{
	RoleSystemAdmin: {
		"users.view", "users.create", "users.edit", "users.delete",
		"courses.view", "courses.create", "courses.edit", "courses.delete",
		"books.view", "books.create", "books.edit", "books.delete",
		"assignments.view", "assignments.create", "assignments.edit", "assignments.delete",
		"grades.view", "grades.edit",
		"students.view",
		"attendance.view", "attendance.manage",
		"classes.manage", "schedules.manage", "schools.manage",
		"cycles.manage", "curriculum.manage", "teachers.monitor",
		"admin.audit", "admin.system", "admin.users", "admin.settings",
		"activity.view", "activity.track",
		"reports.view", "reports.create",
		"children.view", "children.grades.view", "children.attendance.view", "children.assignments.view",
		"financial.view",
		"messages.send", "profile.edit",
	},
	RoleInstitutionManager: {
		"schools.manage",
		"users.view", "users.create", "users.edit",
		"classes.manage", "schedules.manage",
		"cycles.manage", "curriculum.manage", "teachers.monitor",
		"courses.view", "books.view",
		"activity.view",
		"reports.view",
		"messages.send", "profile.edit",
	},
	RoleCoordinator: {
		"classes.manage", "schedules.manage",
		"cycles.manage", "curriculum.manage", "teachers.monitor",
		"courses.view", "grades.view", "students.view",
		"activity.view",
		"reports.view",
		"messages.send", "profile.edit",
	},
	RoleTeacher: {
		"courses.view", "courses.create", "courses.edit",
		"assignments.view", "assignments.create", "assignments.edit", "assignments.delete",
		"books.view", "students.view",
		"grades.view", "grades.edit",
		"attendance.view", "attendance.manage",
		"activity.view",
		"reports.view",
		"messages.send", "profile.edit",
	},
	RoleStudent: {
		"courses.view", "assignments.view", "books.view",
		"grades.view", "activity.view",
		"messages.send", "profile.edit",
	},
	RoleGuardian: {
		"children.view", "children.grades.view", "children.attendance.view", "children.assignments.view",
		"financial.view",
		"messages.send", "profile.edit",
	},
}
