package domain

import (
	"strings"

	dErrors "rolegate/pkg/domain-errors"
)

// Role is the closed set of identity roles known to any service.
// Invariant: the value must be one of the roles below. A deployment may enable a
// subset through RoleSet.
//
// Usage: construct via ParseRole or RoleSet.Parse at trust boundaries; direct casting
// bypasses validation.
type Role string

const (
	RoleUser      Role = "user"
	RoleEmployee  Role = "employee"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

// knownRoles is the single source of truth for valid roles.
var knownRoles = []Role{RoleUser, RoleEmployee, RoleAdmin, RoleSuperuser}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeValidation when the value is empty or unknown.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "role cannot be empty")
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown role %q", s)
	}
	return r, nil
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	for _, k := range knownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// RoleSet is the subset of roles enabled for one deployment.
type RoleSet []Role

// AllRoles returns every known role in declaration order.
func AllRoles() RoleSet {
	return append(RoleSet(nil), knownRoles...)
}

// ParseRoleSet parses a list of role names, rejecting unknown ones and dropping duplicates.
func ParseRoleSet(names []string) (RoleSet, error) {
	set := make(RoleSet, 0, len(names))
	for _, name := range names {
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		if !set.Contains(r) {
			set = append(set, r)
		}
	}
	return set, nil
}

// Contains reports whether r is enabled in the set.
func (s RoleSet) Contains(r Role) bool {
	for _, candidate := range s {
		if candidate == r {
			return true
		}
	}
	return false
}

// Parse validates s against the known roles and this deployment's subset.
//
// Errors: returns CodeValidation for unknown roles and for roles this deployment
// does not enable.
func (s RoleSet) Parse(name string) (Role, error) {
	r, err := ParseRole(name)
	if err != nil {
		return "", err
	}
	if !s.Contains(r) {
		return "", dErrors.Newf(dErrors.CodeValidation, "role %q is not enabled", r)
	}
	return r, nil
}

// Strings returns the role names, e.g. for SQL array parameters.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}
