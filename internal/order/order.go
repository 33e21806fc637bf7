// Package order records completed checkouts as immutable text blocks.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/buyer"
)

// blockHeader opens every persisted order block.
const blockHeader = "----- Order Details -----"

// Line is one purchased book as it was priced at checkout.
type Line struct {
	BookID    int             `json:"bookId"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Order is an immutable record of a checkout.
type Order struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	Buyer        buyer.Buyer     `json:"buyer"`
	Lines        []Line          `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Coupon       string          `json:"coupon,omitempty"`
	CouponStatus string          `json:"couponStatus,omitempty"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Format renders the order block written to the order logs. Money is shown
// rounded to cents; the block ends with a blank line.
func (o Order) Format() string {
	var b strings.Builder
	b.WriteString(blockHeader + "\n")
	fmt.Fprintf(&b, "Order ID: %s\n", o.ID)
	fmt.Fprintf(&b, "Placed At: %s\n", o.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Name: %s\n", o.Username)
	fmt.Fprintf(&b, "Buyer ID: %d\n", o.Buyer.ID)
	fmt.Fprintf(&b, "Buyer Type: %s\n", o.Buyer.Kind.Label())
	switch o.Buyer.Kind {
	case buyer.Gold:
		fmt.Fprintf(&b, "Star Level: %d Star\n", o.Buyer.StarLevel)
	case buyer.Diamond:
		fmt.Fprintf(&b, "Special Discount Rate: %s%% off\n", o.Buyer.DiscountOff())
	}
	if o.Coupon != "" {
		fmt.Fprintf(&b, "Coupon: %s (%s)\n", o.Coupon, o.CouponStatus)
	}
	b.WriteString("Books Purchased:\n")
	for _, l := range o.Lines {
		fmt.Fprintf(&b, "- %s by %s x%d ($%s each)\n", l.Title, l.Author, l.Quantity, l.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total Before Discount: $%s\n", o.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Total Amount Paid: $%s\n\n", o.Total.StringFixed(2))
	return b.String()
}
