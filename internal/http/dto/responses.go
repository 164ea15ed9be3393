package dto

import "github.com/gigchain/backend/internal/models"

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type ChallengeResponse struct {
	Payload   string `json:"payload"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

type RegistrationStatusResponse struct {
	Registered bool `json:"registered"`
}

type DepositInfoResponse struct {
	EscrowAddress string `json:"escrow_address"`
	AmountTON     string `json:"amount_ton"`
	ToleranceTON  string `json:"tolerance_ton"`
}
