package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. A user may hold several (a seller can also buy); admin is
// granted manually.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	WalletAddress  string    `json:"wallet_address"`  // raw: 0:<hex>
	WalletFriendly string    `json:"wallet_friendly"` // EQ.../UQ...
	PublicKey      string    `json:"public_key"`      // hex
	DisplayName    *string   `json:"display_name,omitempty"`
	Roles          []string  `json:"roles"`
	PayoutAddress  *string   `json:"payout_address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PayoutTo returns the address outbound transfers to this user go to.
func (u *User) PayoutTo() string {
	if u.PayoutAddress != nil && *u.PayoutAddress != "" {
		return *u.PayoutAddress
	}
	return u.WalletFriendly
}
