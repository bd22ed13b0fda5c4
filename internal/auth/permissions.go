package auth

// Permission names one guarded capability of the API.
type Permission string

const (
	PermParamRead     Permission = "param:read"
	PermParamWrite    Permission = "param:write"
	PermInventoryRead Permission = "inventory:read"
	PermAuditRead     Permission = "audit:read"
)

// Roles are tiers: each grants its own permissions plus those of every
// role before it in ValidRoles.
var tierPermissions = map[Role][]Permission{
	RoleViewer:   {PermParamRead, PermInventoryRead},
	RoleOperator: {PermParamWrite, PermAuditRead},
}

var grants = buildGrants()

func buildGrants() map[Role]map[Permission]bool {
	out := make(map[Role]map[Permission]bool, len(ValidRoles))
	inherited := map[Permission]bool{}
	for _, r := range ValidRoles {
		set := make(map[Permission]bool, len(inherited)+len(tierPermissions[r]))
		for p := range inherited {
			set[p] = true
		}
		for _, p := range tierPermissions[r] {
			set[p] = true
		}
		out[r] = set
		inherited = set
	}
	return out
}

// HasPermission reports whether role grants perm. Unknown roles grant
// nothing.
func HasPermission(role Role, perm Permission) bool {
	return grants[role][perm]
}
