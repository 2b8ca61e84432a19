package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleAgent      = "agent"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

// CampaignOperators may start dialing for a campaign.
var CampaignOperators = []string{RoleOwner, RoleAgent, RoleSuperAdmin}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// HasAnyRole reports whether role is allowed. super_admin always is.
func HasAnyRole(role string, allowed ...string) bool {
	if role == "" {
		return false
	}
	if IsSuperAdmin(role) {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
