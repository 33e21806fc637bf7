package voucher_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/voucher"
)

func TestLookup(t *testing.T) {
	reg := voucher.Default()

	rule, err := reg.Lookup(" save10 ")
	require.NoError(t, err)
	require.Equal(t, "SAVE10", rule.Code)
	require.True(t, rule.Multiplier.Equal(decimal.RequireFromString("0.9")))

	_, err = reg.Lookup("FREEBOOKS")
	require.ErrorIs(t, err, voucher.ErrUnknownCoupon)
}

func TestNewRegistryRejectsBadMultipliers(t *testing.T) {
	_, err := voucher.NewRegistry(map[string]decimal.Decimal{"UP": decimal.RequireFromString("1.2")})
	require.Error(t, err)
	_, err = voucher.NewRegistry(map[string]decimal.Decimal{"ZERO": decimal.Zero})
	require.Error(t, err)

	reg, err := voucher.NewRegistry(map[string]decimal.Decimal{
		"half":   decimal.RequireFromString("0.5"),
		"SAVE10": decimal.RequireFromString("0.9"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"HALF", "SAVE10"}, reg.Codes())
}
