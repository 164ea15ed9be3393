package models

import (
	"time"

	"github.com/google/uuid"
)

// ProofPayload is a single-use nonce the client must embed in its TON
// Connect proof. Consumed atomically on login/signup to prevent replay.
type ProofPayload struct {
	ID        uuid.UUID `json:"id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
	Used      bool      `json:"-"`
}
