package core

import "strings"

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var AllRoles = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal, RoleTeacher, RoleStudent}

// Session is the authenticated caller, as asserted by the auth provider's token.
// It is passed explicitly; there is no process-wide "current user".
type Session struct {
	UserID   string
	Name     string
	Role     string
	SchoolID string
}

func (s Session) roleStartsWith(prefix string) bool {
	return strings.HasPrefix(s.Role, prefix)
}

func (s Session) IsAdmin() bool   { return s.roleStartsWith(RoleAdmin) }
func (s Session) IsTeacher() bool { return s.roleStartsWith(RoleTeacher) }
func (s Session) IsStudent() bool { return s.roleStartsWith(RoleStudent) }

// IsStaff reports whether the caller may author grades.
func (s Session) IsStaff() bool { return s.IsAdmin() || s.IsTeacher() }

func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
