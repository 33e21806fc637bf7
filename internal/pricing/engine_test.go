package pricing_test

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/pricing"
	"github.com/noah-isme/bookstore/internal/voucher"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func gold(star int) buyer.Buyer { return buyer.Buyer{ID: 10, Kind: buyer.Gold, StarLevel: star} }

func diamond(rate string) buyer.Buyer {
	return buyer.Buyer{ID: 250, Kind: buyer.Diamond, DiscountRate: d(rate)}
}

func TestTierScenarios(t *testing.T) {
	engine := pricing.NewEngine(voucher.Default())

	cases := []struct {
		name     string
		subtotal string
		buyer    buyer.Buyer
		coupon   string
		want     string
	}{
		{"gold five", "100", gold(5), "", "70"},
		{"gold one", "100", gold(1), "", "95"},
		{"diamond 0.60", "50", diamond("0.60"), "", "30"},
		{"gold four with coupon", "100", gold(4), "SAVE10", "72"},
		{"ordinary", "42.42", buyer.Buyer{ID: 1500, Kind: buyer.Ordinary}, "", "42.42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := engine.Price(d(tc.subtotal), tc.buyer, tc.coupon)
			require.True(t, q.Total.Equal(d(tc.want)), "got %s want %s", q.Total, tc.want)
		})
	}
}

func TestCouponOutcomes(t *testing.T) {
	engine := pricing.NewEngine(voucher.Default())

	q := engine.Price(d("100"), gold(4), "BOGUS")
	require.Equal(t, pricing.CouponRejected, q.CouponStatus)
	require.True(t, q.Total.Equal(d("80")))

	q = engine.Price(d("100"), gold(4), "")
	require.Equal(t, pricing.CouponNone, q.CouponStatus)
	require.True(t, q.Total.Equal(d("80")))

	q = engine.Price(d("100"), gold(4), "save10")
	require.Equal(t, pricing.CouponApplied, q.CouponStatus)
	require.Equal(t, "SAVE10", q.Coupon)
}

// The coupon multiplies the already tier-discounted amount. Both orders give the
// same product for pure multipliers, so the breakdown is checked too.
func TestTierAppliesBeforeCoupon(t *testing.T) {
	reg, err := voucher.NewRegistry(map[string]decimal.Decimal{"HALF": d("0.5")})
	require.NoError(t, err)
	q := pricing.NewEngine(reg).Price(d("100"), gold(5), "HALF")

	require.True(t, q.AfterTier.Equal(d("70")))
	require.True(t, q.Total.Equal(d("35")))
	require.True(t, q.TierMultiplier.Equal(d("0.7")))
	require.True(t, q.CouponMultiplier.Equal(d("0.5")))
}

func TestNoRoundingBetweenStages(t *testing.T) {
	q := pricing.NewEngine(voucher.Default()).Price(d("10.99"), gold(3), "SAVE10")
	// 10.99 * 0.85 = 9.3415, * 0.90 = 8.40735
	require.True(t, q.AfterTier.Equal(d("9.3415")))
	require.True(t, q.Total.Equal(d("8.40735")))
	require.Equal(t, "8.41", pricing.Round2(q.Total).StringFixed(2))
}

func TestPriceIsMonotoneAndBounded(t *testing.T) {
	engine := pricing.NewEngine(voucher.Default())
	buyers := []buyer.Buyer{
		{ID: 1500, Kind: buyer.Ordinary},
		gold(1), gold(2), gold(3), gold(4), gold(5),
		diamond("0.01"), diamond("0.5"), diamond("1"),
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		a := decimal.NewFromInt(rng.Int64N(100000)).Shift(-2)
		b := a.Add(decimal.NewFromInt(rng.Int64N(100000)).Shift(-2))
		for _, by := range buyers {
			for _, coupon := range []string{"", "SAVE10", "NOPE"} {
				qa := engine.Price(a, by, coupon)
				qb := engine.Price(b, by, coupon)
				require.True(t, qa.Total.LessThanOrEqual(qb.Total), "monotone %s %s", a, b)
				require.True(t, qa.Total.LessThanOrEqual(a), "bounded %s", a)
				require.False(t, qa.Total.IsNegative())
			}
		}
	}
}

func TestTierMultiplierFallsBackForInvalidPayload(t *testing.T) {
	require.True(t, pricing.TierMultiplier(gold(9)).Equal(d("1")))
	require.True(t, pricing.TierMultiplier(diamond("1.5")).Equal(d("1")))
}
