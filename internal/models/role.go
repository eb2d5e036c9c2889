package models

import (
	"fmt"
	"strings"
)

// UserRole gates which endpoints an account may call.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
	// RoleSystem marks scheduled and webhook work; no login account holds it.
	RoleSystem UserRole = "SYSTEM"
)

// Assignable reports whether an account may be created with the role.
func (r UserRole) Assignable() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// BackOffice reports whether the role works on other people's records.
func (r UserRole) BackOffice() bool {
	return r == RoleAdmin || r == RoleStaff || r == RoleInstructor
}

// ParseUserRole accepts a role name in any case.
func ParseUserRole(raw string) (UserRole, error) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Assignable() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
