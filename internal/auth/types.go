package auth

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read parameters, the catalog and the inventory.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally write parameters and read the audit
	// trail of writes.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles tokens can be issued for.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}
