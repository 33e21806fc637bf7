// Package voucher holds the coupon codes accepted at checkout.
package voucher

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCoupon is returned for a code that is not registered.
var ErrUnknownCoupon = errors.New("coupon not recognised")

// Rule is a multiplicative coupon: the discounted amount is multiplied by Multiplier.
type Rule struct {
	Code       string          `json:"code"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Registry is an immutable set of coupon rules keyed by upper-cased code.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry builds a registry from code → multiplier pairs. Multipliers must lie in (0, 1].
func NewRegistry(codes map[string]decimal.Decimal) (*Registry, error) {
	r := &Registry{rules: make(map[string]Rule, len(codes))}
	one := decimal.NewFromInt(1)
	for code, mult := range codes {
		key := normalise(code)
		if key == "" {
			return nil, errors.New("voucher: empty coupon code")
		}
		if !mult.IsPositive() || mult.GreaterThan(one) {
			return nil, fmt.Errorf("voucher: %s multiplier %s outside (0, 1]", key, mult)
		}
		r.rules[key] = Rule{Code: key, Multiplier: mult}
	}
	return r, nil
}

// Default returns the registry with only SAVE10 (10% off).
func Default() *Registry {
	r, _ := NewRegistry(map[string]decimal.Decimal{"SAVE10": decimal.RequireFromString("0.90")})
	return r
}

// Lookup resolves a code, ignoring surrounding whitespace and case.
func (r *Registry) Lookup(code string) (Rule, error) {
	key := normalise(code)
	if r != nil {
		if rule, ok := r.rules[key]; ok {
			return rule, nil
		}
	}
	return Rule{}, fmt.Errorf("%q: %w", strings.TrimSpace(code), ErrUnknownCoupon)
}

// Codes lists registered codes in sorted order.
func (r *Registry) Codes() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.rules))
}

func normalise(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
