package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermParamRead, true},
		{RoleViewer, PermInventoryRead, true},
		{RoleViewer, PermParamWrite, false},
		{RoleOperator, PermParamRead, true},
		{RoleOperator, PermParamWrite, true},
		{RoleOperator, PermInventoryRead, true},
		{RoleViewer, PermAuditRead, false},
		{RoleOperator, PermAuditRead, true},
		{Role("guest"), PermParamRead, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestOperatorInheritsViewer(t *testing.T) {
	for _, p := range tierPermissions[RoleViewer] {
		if !HasPermission(RoleOperator, p) {
			t.Errorf("operator lacks viewer permission %s", p)
		}
	}
	if len(grants[RoleOperator]) != 4 {
		t.Errorf("operator grants = %v, want 4", grants[RoleOperator])
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%s) = false", r)
		}
	}
	if IsValidRole("admin") {
		t.Error("IsValidRole(admin) = true")
	}
}
