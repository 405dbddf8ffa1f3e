package access

import (
	"errors"
	"testing"
)

func TestIsPermitted_Matrix(t *testing.T) {
	tests := []struct {
		capability Capability
		admin      bool
		operator   bool
		viewer     bool
	}{
		{ViewTable, true, true, true},
		{UseFilters, true, true, false},
		{ViewDetail, true, true, false},
		{UpdateStatus, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			if got := IsPermitted(RoleAdmin, tt.capability); got != tt.admin {
				t.Errorf("admin: expected %t, got %t", tt.admin, got)
			}
			if got := IsPermitted(RoleOperator, tt.capability); got != tt.operator {
				t.Errorf("operator: expected %t, got %t", tt.operator, got)
			}
			if got := IsPermitted(RoleViewer, tt.capability); got != tt.viewer {
				t.Errorf("viewer: expected %t, got %t", tt.viewer, got)
			}
		})
	}
}

func TestIsPermitted_UnsetRoleDeniedEverything(t *testing.T) {
	for _, c := range Capabilities() {
		if IsPermitted(RoleUnset, c) {
			t.Errorf("Expected unset role to be denied %s", c)
		}
	}
	if IsPermitted(Role("root"), ViewTable) {
		t.Error("Expected unknown role to be denied")
	}
}

func TestIsPermitted_UnknownCapabilityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for unknown capability")
		}
	}()
	IsPermitted(RoleAdmin, Capability("delete_everything"))
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(string(r))
		if err != nil {
			t.Errorf("ParseRole(%q) failed: %v", r, err)
		}
		if got != r {
			t.Errorf("Expected %s, got %s", r, got)
		}
	}

	for _, s := range []string{"", "Admin", "superuser"} {
		if _, err := ParseRole(s); !errors.Is(err, ErrUnknownRole) {
			t.Errorf("ParseRole(%q): expected ErrUnknownRole, got %v", s, err)
		}
	}
}

func TestPermissions(t *testing.T) {
	perms := Permissions(RoleOperator)
	if len(perms) != len(Capabilities()) {
		t.Fatalf("Expected %d capabilities, got %d", len(Capabilities()), len(perms))
	}
	if !perms[ViewDetail] || perms[UpdateStatus] {
		t.Errorf("Unexpected operator permissions: %v", perms)
	}
}

func TestRoles_ReturnsCopy(t *testing.T) {
	r := Roles()
	r[0] = RoleViewer
	if Roles()[0] != RoleAdmin {
		t.Error("Roles() should not expose internal slice")
	}
}
