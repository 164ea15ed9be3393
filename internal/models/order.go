package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses
const (
	OrderStatusPending        = "pending"
	OrderStatusInProgress     = "in_progress"
	OrderStatusProofSubmitted = "proof_submitted"
	OrderStatusDelivered      = "delivered"
	OrderStatusDisputed       = "disputed"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

// Valid state transitions: from -> []to
var ValidOrderTransitions = map[string][]string{
	OrderStatusPending:        {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress:     {OrderStatusProofSubmitted, OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusProofSubmitted: {OrderStatusDelivered, OrderStatusCompleted, OrderStatusDisputed},
	OrderStatusDelivered:      {OrderStatusCompleted, OrderStatusDisputed},
	OrderStatusDisputed:       {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidOrderTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// ReleasableStatuses are the statuses from which escrow may be released,
// either by buyer approval or by the overdue-delivery sweep.
var ReleasableStatuses = []string{OrderStatusProofSubmitted, OrderStatusDelivered}

func IsReleasableStatus(status string) bool {
	for _, s := range ReleasableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Order struct {
	ID                 uuid.UUID  `json:"id"`
	GigID              uuid.UUID  `json:"gig_id"`
	BuyerID            uuid.UUID  `json:"buyer_id"`
	SellerID           uuid.UUID  `json:"seller_id"`
	AmountTON          string     `json:"amount_ton"` // numeric as string
	Status             string     `json:"status"`
	DeliveryDays       int        `json:"delivery_days"`
	PackageIndex       int        `json:"package_index"`
	EscrowAddress      string     `json:"escrow_address"`
	DepositTxHash      string     `json:"deposit_tx_hash"`
	ReleaseTxHash      *string    `json:"release_tx_hash,omitempty"`
	ProofDescription   *string    `json:"proof_description,omitempty"`
	ProofFiles         []string   `json:"proof_files,omitempty"`
	PlatformFeeTON     *string    `json:"platform_fee_ton,omitempty"`
	RefundAmountTON    *string    `json:"refund_amount_ton,omitempty"`
	DisputeReason      *string    `json:"dispute_reason,omitempty"`
	ResolutionReason   *string    `json:"resolution_reason,omitempty"`
	EscrowReleased     bool       `json:"escrow_released"`
	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at,omitempty"`
	ProofSubmittedAt   *time.Time `json:"proof_submitted_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	DisputedAt         *time.Time `json:"disputed_at,omitempty"`
	DisputeResolvedAt  *time.Time `json:"dispute_resolved_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DeliveredSince returns the delivery reference time used for the grace
// window: delivered_at, falling back to proof_submitted_at.
func (o *Order) DeliveredSince() *time.Time {
	if o.DeliveredAt != nil {
		return o.DeliveredAt
	}
	return o.ProofSubmittedAt
}

// CanApprove reports whether buyer approval is allowed: the work must be
// delivered (or at least have proof submitted) and carry proof files.
func (o *Order) CanApprove() bool {
	return IsReleasableStatus(o.Status) && len(o.ProofFiles) > 0
}
