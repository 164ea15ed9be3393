package ton

import (
	"context"
	"math/big"

	"github.com/gigchain/backend/internal/apperrors"
	"go.uber.org/zap"
)

// DepositSource is the slice of the chain client the verifier needs.
type DepositSource interface {
	FindDeposit(ctx context.Context, txHash string) (*DepositTx, error)
}

// VerifiedDeposit is the result of a successful deposit check.
type VerifiedDeposit struct {
	TxHash     string
	Sender     string
	Recipient  string
	AmountNano *big.Int
}

// Verifier confirms that a funding transaction pays the expected amount to
// the expected escrow address. It is strictly read-only: it never mutates
// order or ledger state, callers do that after it succeeds.
type Verifier struct {
	src DepositSource
	log *zap.Logger
}

func NewVerifier(src DepositSource, log *zap.Logger) *Verifier {
	return &Verifier{src: src, log: log}
}

// VerifyDeposit fetches the transaction by hash and validates it against
// the expected recipient and amount (in TON, decimal string).
//
// Failure kinds: NotFound when the hash is not visible yet (retryable),
// Execution when the transfer bounced on-chain, Verification when the
// recipient or amount does not match.
func (v *Verifier) VerifyDeposit(ctx context.Context, txHash, expectedRecipient, expectedAmountTON string) (*VerifiedDeposit, error) {
	expectedNano, err := ParseTON(expectedAmountTON)
	if err != nil {
		return nil, err
	}

	tx, err := v.src.FindDeposit(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if err := CheckDeposit(tx, expectedRecipient, expectedNano); err != nil {
		v.log.Warn("deposit rejected",
			zap.String("tx_hash", txHash),
			zap.String("expected_recipient", expectedRecipient),
			zap.String("expected_amount", expectedAmountTON),
			zap.Error(err),
		)
		return nil, err
	}

	return &VerifiedDeposit{
		TxHash:     tx.Hash,
		Sender:     tx.Sender,
		Recipient:  tx.Recipient,
		AmountNano: tx.AmountNano,
	}, nil
}

// CheckDeposit validates an already-fetched transaction. Split out so the
// matching rules are testable without a lite server.
func CheckDeposit(tx *DepositTx, expectedRecipient string, expectedNano *big.Int) error {
	if tx.Bounced {
		return apperrors.New(apperrors.KindExecution, "funding transaction %s bounced on-chain", tx.Hash)
	}
	// Exact address match: a correct amount to the wrong account is still
	// a rejection.
	if tx.Recipient != expectedRecipient {
		return apperrors.New(apperrors.KindVerification,
			"recipient mismatch: deposit went to %s, expected %s", tx.Recipient, expectedRecipient)
	}
	if !WithinTolerance(tx.AmountNano, expectedNano) {
		return apperrors.New(apperrors.KindVerification,
			"amount mismatch: received %s TON, expected %s TON",
			FormatTON(tx.AmountNano), FormatTON(expectedNano))
	}
	return nil
}
