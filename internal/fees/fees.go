package fees

import (
	"math/big"

	"github.com/gigchain/backend/internal/apperrors"
)

// All settlement paths (buyer approval, auto-release, dispute resolution)
// compute their splits here, against one configured rate. Amounts are in
// nanoTON.

const bpsDenominator = 10_000

// Split divides a deposit into platform fee and seller payout.
// fee = amount * feeBps / 10000, seller = amount - fee. Truncating integer
// division; the remainder stays with the seller, so fee + seller == amount
// always holds exactly.
func Split(amountNano *big.Int, feeBps int) (fee, seller *big.Int, err error) {
	if amountNano == nil || amountNano.Sign() <= 0 {
		return nil, nil, apperrors.New(apperrors.KindState, "split amount must be positive")
	}
	if feeBps < 0 || feeBps >= bpsDenominator {
		return nil, nil, apperrors.New(apperrors.KindConfig, "fee rate %d bps out of range [0, 10000)", feeBps)
	}

	fee = new(big.Int).Mul(amountNano, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(bpsDenominator))
	seller = new(big.Int).Sub(amountNano, fee)
	return fee, seller, nil
}

// RefundSplit divides a disputed deposit three ways: refundPct percent back
// to the buyer, the remainder split seller/platform at the standard rate.
// refundPct = 100 is a pure refund with zero seller payout and zero fee.
// refund + fee + seller == amount exactly.
func RefundSplit(amountNano *big.Int, refundPct, feeBps int) (refund, fee, seller *big.Int, err error) {
	if amountNano == nil || amountNano.Sign() <= 0 {
		return nil, nil, nil, apperrors.New(apperrors.KindState, "refund amount must be positive")
	}
	if refundPct < 0 || refundPct > 100 {
		return nil, nil, nil, apperrors.New(apperrors.KindState, "refund percentage %d out of range [0, 100]", refundPct)
	}

	refund = new(big.Int).Mul(amountNano, big.NewInt(int64(refundPct)))
	refund.Div(refund, big.NewInt(100))

	remainder := new(big.Int).Sub(amountNano, refund)
	if remainder.Sign() == 0 {
		return refund, big.NewInt(0), big.NewInt(0), nil
	}

	fee, seller, err = Split(remainder, feeBps)
	if err != nil {
		return nil, nil, nil, err
	}
	return refund, fee, seller, nil
}
