package dto

import "github.com/gigchain/backend/internal/ton"

type LoginRequest struct {
	Address   string    `json:"address"`    // raw: 0:<hex>
	PublicKey string    `json:"public_key"` // hex
	Proof     ton.Proof `json:"proof"`
}

type SignupRequest struct {
	Address     string    `json:"address"`
	PublicKey   string    `json:"public_key"`
	Proof       ton.Proof `json:"proof"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"` // buyer or seller
}

type CreateOrderRequest struct {
	GigID         string `json:"gig_id"`
	PackageIndex  int    `json:"package_index"`
	DepositTxHash string `json:"deposit_tx_hash"`
}

type SubmitProofRequest struct {
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

type DisputeRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	RefundPct int    `json:"refund_pct"` // 0..100
	Reason    string `json:"reason"`     // admin rationale, recorded on the order
}

type GigPackageRequest struct {
	Title        string `json:"title"`
	PriceTON     string `json:"price_ton"`
	DeliveryDays int    `json:"delivery_days"`
}

type GigRequest struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Category    *string             `json:"category"`
	Packages    []GigPackageRequest `json:"packages"`
}

type SetGigActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type UpdatePayoutRequest struct {
	PayoutAddress string `json:"payout_address"`
}
