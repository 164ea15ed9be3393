package models

import (
	"time"

	"github.com/google/uuid"
)

// Settlement ledger entry types. Entries are append-only: one row per fund
// movement, never updated or deleted.
const (
	LedgerTypeDeposit     = "deposit"
	LedgerTypeRelease     = "release"
	LedgerTypeRefund      = "refund"
	LedgerTypeAutoRelease = "auto_release"
)

type LedgerEntry struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	AmountTON string    `json:"amount_ton"`
	TxType    string    `json:"tx_type"`
	TxHash    *string   `json:"tx_hash,omitempty"` // nil for internal-only entries
	CreatedAt time.Time `json:"created_at"`
}

// IsOutbound reports whether the entry records funds leaving escrow.
func (e *LedgerEntry) IsOutbound() bool {
	return e.TxType == LedgerTypeRelease || e.TxType == LedgerTypeRefund || e.TxType == LedgerTypeAutoRelease
}
