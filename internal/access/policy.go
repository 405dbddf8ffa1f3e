// Package access decides which actions each role may perform.
package access

import (
	"errors"
	"fmt"
)

// Role is the self-declared access level of the operator
type Role string

const (
	RoleUnset    Role = ""
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Capability is a named permission checked against a role
type Capability string

const (
	ViewTable    Capability = "view_table"
	UseFilters   Capability = "use_filters"
	ViewDetail   Capability = "view_detail"
	UpdateStatus Capability = "update_status"
)

// ErrUnknownRole is returned when parsing a role outside the enumerated set
var ErrUnknownRole = errors.New("unknown role")

var roles = []Role{RoleAdmin, RoleOperator, RoleViewer}

var capabilities = []Capability{ViewTable, UseFilters, ViewDetail, UpdateStatus}

// matrix lists, per capability, the roles that hold it
var matrix = map[Capability]map[Role]bool{
	ViewTable:    {RoleAdmin: true, RoleOperator: true, RoleViewer: true},
	UseFilters:   {RoleAdmin: true, RoleOperator: true},
	ViewDetail:   {RoleAdmin: true, RoleOperator: true},
	UpdateStatus: {RoleAdmin: true},
}

// IsPermitted reports whether role holds capability. The unset role holds
// nothing. Panics on a capability outside the enumerated set.
func IsPermitted(role Role, capability Capability) bool {
	holders, ok := matrix[capability]
	if !ok {
		panic(fmt.Sprintf("access: unknown capability %q", string(capability)))
	}
	return holders[role]
}

// Roles returns the selectable roles in display order
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Capabilities returns every capability in display order
func Capabilities() []Capability {
	out := make([]Capability, len(capabilities))
	copy(out, capabilities)
	return out
}

// Permissions returns the capability map for a single role
func Permissions(role Role) map[Capability]bool {
	perms := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		perms[c] = IsPermitted(role, c)
	}
	return perms
}

// ParseRole converts user input into a Role
func ParseRole(s string) (Role, error) {
	for _, r := range roles {
		if string(r) == s {
			return r, nil
		}
	}
	return RoleUnset, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the selectable roles
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Label returns the display name of the role
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleOperator:
		return "Operator"
	case RoleViewer:
		return "Viewer"
	default:
		return "None"
	}
}
