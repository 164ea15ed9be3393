package services

import (
	"context"
	"math/big"

	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/ton"
	"github.com/google/uuid"
)

// Store interfaces cover exactly what the services call. The repositories
// package satisfies them against Postgres; tests satisfy them in memory.

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByDepositTxHash(ctx context.Context, txHash string) (*models.Order, error)
	List(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error)
	SetProof(ctx context.Context, id uuid.UUID, description string, files []string) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkDisputed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	ClaimSettlement(ctx context.Context, id uuid.UUID, toStatus string, fromStatuses []string, platformFeeTON string, refundAmountTON, resolutionReason *string) (bool, error)
	SetReleaseTxHash(ctx context.Context, id uuid.UUID, txHash string) error
	GetOverdueDeliveries(ctx context.Context, graceSeconds int) ([]models.Order, error)
	GetClaimedUnrecorded(ctx context.Context) ([]models.Order, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, e *models.LedgerEntry) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	GetOutbound(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	TouchLastActive(ctx context.Context, id uuid.UUID) error
	AddRole(ctx context.Context, id uuid.UUID, role string) error
}

type GigStore interface {
	Create(ctx context.Context, g *models.Gig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	List(ctx context.Context, f repositories.GigFilter) ([]models.Gig, error)
	Update(ctx context.Context, g *models.Gig) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type NonceStore interface {
	Create(ctx context.Context, p *models.ProofPayload) error
	Consume(ctx context.Context, payload string) (bool, error)
}

// DepositChecker verifies a funding transaction on-chain.
type DepositChecker interface {
	VerifyDeposit(ctx context.Context, txHash, expectedRecipient, expectedAmountTON string) (*ton.VerifiedDeposit, error)
}

// FundsMover is the custodian wallet surface the settlement engine needs.
type FundsMover interface {
	Address() string
	BalanceNano(ctx context.Context) (*big.Int, error)
	Transfer(ctx context.Context, toAddr string, amountNano *big.Int, memo string) (string, error)
}
