// Package buyer models the three buyer tiers derived from an account id.
package buyer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/common"
)

// Kind enumerates the buyer tiers.
type Kind int

const (
	Ordinary Kind = iota
	Gold
	Diamond
)

func (k Kind) String() string {
	switch k {
	case Gold:
		return "Gold"
	case Diamond:
		return "Diamond"
	default:
		return "Ordinary"
	}
}

// MarshalText renders the tier name for JSON payloads.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a tier name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Ordinary":
		*k = Ordinary
	case "Gold":
		*k = Gold
	case "Diamond":
		*k = Diamond
	default:
		return fmt.Errorf("unknown buyer kind %q", text)
	}
	return nil
}

// Id ranges per tier, inclusive.
const (
	GoldMinID     = 1
	GoldMaxID     = 100
	DiamondMinID  = 200
	DiamondMaxID  = 300
	OrdinaryMinID = 1000
	OrdinaryMaxID = 2000
)

// Buyer is the pricing identity of a logged-in user. StarLevel is meaningful
// only for Gold and DiscountRate only for Diamond.
type Buyer struct {
	ID             int             `json:"id"`
	Kind           Kind            `json:"kind"`
	StarLevel      int             `json:"starLevel,omitempty"`
	DiscountRate   decimal.Decimal `json:"discountRate,omitzero"`
	PurchaseAmount decimal.Decimal `json:"purchaseAmount"`
}

// KindForID classifies an account id into a tier.
func KindForID(id int) (Kind, error) {
	switch {
	case id >= GoldMinID && id <= GoldMaxID:
		return Gold, nil
	case id >= DiamondMinID && id <= DiamondMaxID:
		return Diamond, nil
	case id >= OrdinaryMinID && id <= OrdinaryMaxID:
		return Ordinary, nil
	default:
		return Ordinary, fmt.Errorf("buyer id %d: %w", id, common.ErrInvalidBuyerID)
	}
}

// FromID builds a buyer for the given account id. starLevel is read for Gold
// buyers and discountRate for Diamond buyers; the other is ignored.
func FromID(id, starLevel int, discountRate decimal.Decimal) (Buyer, error) {
	kind, err := KindForID(id)
	if err != nil {
		return Buyer{}, err
	}
	b := Buyer{ID: id, Kind: kind}
	switch kind {
	case Gold:
		if starLevel < 1 || starLevel > 5 {
			return Buyer{}, fmt.Errorf("star level %d: %w", starLevel, common.ErrInvalidStarLevel)
		}
		b.StarLevel = starLevel
	case Diamond:
		if !discountRate.IsPositive() || discountRate.GreaterThan(decimal.NewFromInt(1)) {
			return Buyer{}, fmt.Errorf("discount rate %s: %w", discountRate, common.ErrInvalidDiscountRate)
		}
		b.DiscountRate = discountRate
	}
	return b, nil
}

// Label is the membership name shown on order summaries.
func (k Kind) Label() string {
	return k.String() + " Member"
}

// DiscountOff renders a Diamond discount rate as the percentage taken off, e.g. 0.60 → "40".
func (b Buyer) DiscountOff() string {
	return decimal.NewFromInt(1).Sub(b.DiscountRate).Mul(decimal.NewFromInt(100)).Round(2).String()
}
