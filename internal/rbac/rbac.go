package rbac

import "github.com/gigchain/backend/internal/models"

// Permission constants
const (
	PermCreateOrder    = "create_order"
	PermApproveOrder   = "approve_order"
	PermSubmitProof    = "submit_proof"
	PermMarkDelivered  = "mark_delivered"
	PermFileDispute    = "file_dispute"
	PermResolveDispute = "resolve_dispute"
	PermManageGigs     = "manage_gigs"
	PermSetPayout      = "set_payout"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	models.RoleBuyer: {
		PermCreateOrder, PermApproveOrder, PermFileDispute, PermSetPayout,
	},
	models.RoleSeller: {
		PermManageGigs, PermSubmitProof, PermMarkDelivered, PermFileDispute, PermSetPayout,
	},
	models.RoleAdmin: {
		PermResolveDispute,
	},
}

// HasPermission checks whether any of the roles grants the permission.
func HasPermission(roles []string, permission string) bool {
	for _, role := range roles {
		for _, p := range RolePermissions[role] {
			if p == permission {
				return true
			}
		}
	}
	return false
}
