package models

import "fmt"

// Role is the role a user holds within an organization.
// Ownership is not a role, it is recorded on the organization itself.
type Role string

const (
	RoleMember        Role = "member"
	RoleAdministrator Role = "administrator"
)

// Roles lists every assignable role.
var Roles = []Role{RoleMember, RoleAdministrator}

// ParseRole converts a string to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdministrator:
		return true
	}
	return false
}

func (r Role) IsAdministrator() bool {
	return r == RoleAdministrator
}

func (r Role) String() string {
	return string(r)
}

// Label returns a human readable name for the role.
func (r Role) Label() string {
	switch r {
	case RoleAdministrator:
		return "Administrator"
	case RoleMember:
		return "Member"
	}
	return string(r)
}

// Description summarises what the role grants.
func (r Role) Description() string {
	switch r {
	case RoleAdministrator:
		return "Can manage organization settings and members"
	case RoleMember:
		return "Can view and participate in organization activities"
	}
	return ""
}
