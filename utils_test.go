package gpv2

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
	}{
		{amount: "1", decimals: 18, want: "1000000000000000000"},
		{amount: "1.5", decimals: 6, want: "1500000"},
		{amount: "0.000001", decimals: 6, want: "1"},
		{amount: " 42 ", decimals: 0, want: "42"},
		{amount: "0", decimals: 18, want: "0"},
		{amount: "123456789.123456789", decimals: 18, want: "123456789123456789000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ParseUnits(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseUnitsErrors(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
	}{
		{name: "not a number", amount: "one", decimals: 18},
		{name: "negative", amount: "-1", decimals: 18},
		{name: "too many decimals", amount: "0.0000001", decimals: 6},
		{name: "negative decimals", amount: "1", decimals: -1},
		{name: "decimals out of range", amount: "1", decimals: MaxDecimals + 1},
		{name: "above uint256", amount: "2", decimals: MaxDecimals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUnits(tt.amount, tt.decimals)
			assert.ErrorIs(t, err, ErrInvalidParam)
		})
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "1", FormatUnits(big.NewInt(1_000_000), 6))
	assert.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	assert.Equal(t, "42", FormatUnits(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatUnits(nil, 18))
}

func TestMaxUint256(t *testing.T) {
	limit := MaxUint256()
	assert.Equal(t, 256, limit.BitLen())

	limit.SetInt64(0)
	assert.Equal(t, 256, MaxUint256().BitLen())
}
