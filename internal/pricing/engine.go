// Package pricing turns a cart subtotal into the amount a buyer pays.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/voucher"
)

// CouponStatus reports what happened to the coupon code offered at checkout.
type CouponStatus string

const (
	CouponNone     CouponStatus = "none"
	CouponApplied  CouponStatus = "applied"
	CouponRejected CouponStatus = "rejected"
)

var goldMultipliers = map[int]decimal.Decimal{
	5: decimal.RequireFromString("0.70"),
	4: decimal.RequireFromString("0.80"),
	3: decimal.RequireFromString("0.85"),
	2: decimal.RequireFromString("0.90"),
	1: decimal.RequireFromString("0.95"),
}

var one = decimal.NewFromInt(1)

// Quote is the full breakdown of a priced cart. Amounts are unrounded.
type Quote struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	TierMultiplier   decimal.Decimal `json:"tierMultiplier"`
	AfterTier        decimal.Decimal `json:"afterTier"`
	Coupon           string          `json:"coupon,omitempty"`
	CouponStatus     CouponStatus    `json:"couponStatus"`
	CouponMultiplier decimal.Decimal `json:"couponMultiplier"`
	Total            decimal.Decimal `json:"total"`
}

// TierMultiplier returns the factor applied for the buyer's tier. Unknown
// star levels and out-of-range rates fall back to no discount so the result
// never exceeds the subtotal.
func TierMultiplier(b buyer.Buyer) decimal.Decimal {
	switch b.Kind {
	case buyer.Gold:
		if m, ok := goldMultipliers[b.StarLevel]; ok {
			return m
		}
	case buyer.Diamond:
		if b.DiscountRate.IsPositive() && b.DiscountRate.LessThanOrEqual(one) {
			return b.DiscountRate
		}
	}
	return one
}

// Engine prices carts against a coupon registry.
type Engine struct {
	coupons *voucher.Registry
}

// NewEngine constructs an Engine. A nil registry accepts no coupons.
func NewEngine(coupons *voucher.Registry) *Engine {
	return &Engine{coupons: coupons}
}

// Price applies the tier multiplier, then the coupon multiplier. An empty code
// leaves the amount unchanged; an unknown code is reported as rejected and also
// has no effect.
func (e *Engine) Price(subtotal decimal.Decimal, b buyer.Buyer, coupon string) Quote {
	tier := TierMultiplier(b)
	afterTier := subtotal.Mul(tier)
	q := Quote{
		Subtotal:         subtotal,
		TierMultiplier:   tier,
		AfterTier:        afterTier,
		Coupon:           coupon,
		CouponStatus:     CouponNone,
		CouponMultiplier: one,
		Total:            afterTier,
	}
	if coupon == "" {
		return q
	}
	rule, err := e.coupons.Lookup(coupon)
	if errors.Is(err, voucher.ErrUnknownCoupon) {
		q.CouponStatus = CouponRejected
		return q
	}
	q.Coupon = rule.Code
	q.CouponStatus = CouponApplied
	q.CouponMultiplier = rule.Multiplier
	q.Total = afterTier.Mul(rule.Multiplier)
	return q
}

// Round2 rounds an amount to cents for display and persistence.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
