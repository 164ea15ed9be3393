package ton

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/gigchain/backend/internal/apperrors"
)

// 1 TON = 1_000_000_000 nanoTON.
const nanoDecimals = 9

// DepositToleranceNano is the absolute tolerance used when matching an
// on-chain deposit against the expected amount: 0.0001 TON, enough to
// absorb unit rounding on the client side.
var DepositToleranceNano = big.NewInt(100_000)

// ParseTON converts a decimal TON string (e.g. "5.5") to nanoTON.
func ParseTON(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, apperrors.New(apperrors.KindState, "empty TON amount")
	}
	neg := strings.HasPrefix(s, "-")

	parts := strings.Split(strings.TrimPrefix(s, "-"), ".")
	if len(parts) > 2 {
		return nil, apperrors.New(apperrors.KindState, "invalid TON amount: %s", s)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}

	if len(frac) > nanoDecimals {
		frac = frac[:nanoDecimals]
	}
	for len(frac) < nanoDecimals {
		frac += "0"
	}

	nano, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, apperrors.New(apperrors.KindState, "invalid TON amount: %s", s)
	}
	if neg {
		nano.Neg(nano)
	}
	return nano, nil
}

// FormatTON renders nanoTON as a decimal TON string without trailing
// zeros ("5.7", "0.0003", "12").
func FormatTON(nano *big.Int) string {
	if nano == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(nano)
	if nano.Sign() < 0 {
		sign = "-"
	}

	q, r := new(big.Int).QuoRem(abs, big.NewInt(1_000_000_000), new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}

	frac := fmt.Sprintf("%09d", r)
	frac = strings.TrimRight(frac, "0")
	return sign + q.String() + "." + frac
}

// WithinTolerance reports whether |got - want| <= DepositToleranceNano.
func WithinTolerance(got, want *big.Int) bool {
	delta := new(big.Int).Sub(got, want)
	return delta.Abs(delta).Cmp(DepositToleranceNano) <= 0
}
