package rbac

import (
	"testing"

	"github.com/gigchain/backend/internal/models"
)

func TestHasPermission(t *testing.T) {
	cases := []struct {
		name       string
		roles      []string
		permission string
		want       bool
	}{
		{"admin resolves disputes", []string{models.RoleAdmin}, PermResolveDispute, true},
		{"buyer cannot resolve", []string{models.RoleBuyer}, PermResolveDispute, false},
		{"seller cannot resolve", []string{models.RoleSeller}, PermResolveDispute, false},
		{"buyer creates orders", []string{models.RoleBuyer}, PermCreateOrder, true},
		{"seller manages gigs", []string{models.RoleSeller}, PermManageGigs, true},
		{"either party disputes", []string{models.RoleBuyer}, PermFileDispute, true},
		{"any granting role suffices", []string{models.RoleBuyer, models.RoleSeller}, PermManageGigs, true},
		{"no roles, no permissions", nil, PermSetPayout, false},
		{"unknown role grants nothing", []string{"auditor"}, PermCreateOrder, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasPermission(tc.roles, tc.permission); got != tc.want {
				t.Errorf("HasPermission(%v, %s) = %v, want %v", tc.roles, tc.permission, got, tc.want)
			}
		})
	}
}
