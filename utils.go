package gpv2

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest number of decimals a uint256 amount can carry
const MaxDecimals = 77

// MaxUint256 returns 2^256 - 1, the amount used for unlimited approvals
func MaxUint256() *big.Int {
	return new(big.Int).Set(math.MaxBig256)
}

// ParseUnits converts a human-readable token amount into base units.
// Amounts with more fractional digits than decimals are rejected rather
// than truncated.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, &InvalidParamError{Message: fmt.Sprintf("decimals must be between 0 and %d, got: %d", MaxDecimals, decimals)}
	}

	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid amount %q: %v", amount, err)}
	}
	if value.Sign() < 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount must not be negative, got: %s", amount)}
	}

	scaled := value.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount %s has more than %d decimals", amount, decimals)}
	}

	result := scaled.BigInt()
	if result.Cmp(math.MaxBig256) > 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount too large for uint256: %s", result.String())}
	}

	return result, nil
}

// FormatUnits renders base units as a human-readable decimal string
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, int32(-decimals)).String()
}
