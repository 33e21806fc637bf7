// Package cart holds a session's shopping cart and wishlist.
package cart

import (
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/common"
)

// Quantity policies for UpdateQuantity.
const (
	PolicyLenient = "lenient"
	PolicyStrict  = "strict"
)

// Lookup resolves books by id.
type Lookup interface {
	FindByID(id int) (catalog.Book, error)
}

// Options tune cart behaviour.
type Options struct {
	// MergeDuplicates folds repeated adds of a book into one line instead of appending.
	MergeDuplicates bool
	// Policy is PolicyLenient (trust the snapshot) or PolicyStrict (re-check live stock).
	Policy string
}

// Line is a snapshot of a book at add time plus the quantity requested.
type Line struct {
	Book     catalog.Book `json:"book"`
	Quantity int          `json:"quantity"`
}

// LineDetail is one priced row of a subtotal.
type LineDetail struct {
	BookID    int             `json:"bookId"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Cart is an ordered list of lines. It is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	opts  Options
	lines []Line
}

// New constructs an empty cart.
func New(opts Options) *Cart {
	if opts.Policy == "" {
		opts.Policy = PolicyLenient
	}
	return &Cart{opts: opts}
}

// AddLine adds requested copies of a book, clamped to the stock at add time,
// and returns the quantity actually added. Nothing is added when the book is
// out of stock.
func (c *Cart) AddLine(lookup Lookup, bookID, requested int) (int, error) {
	if requested <= 0 {
		return 0, fmt.Errorf("quantity %d: %w", requested, common.ErrInvalidQuantity)
	}
	book, err := lookup.FindByID(bookID)
	if err != nil {
		return 0, err
	}
	qty := min(requested, book.Stock)
	if qty <= 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.MergeDuplicates {
		if i := c.indexOf(bookID); i >= 0 {
			// merged total is clamped against the same stock reading
			merged := min(c.lines[i].Quantity+qty, book.Stock)
			added := merged - c.lines[i].Quantity
			c.lines[i] = Line{Book: book, Quantity: merged}
			return added, nil
		}
	}
	c.lines = append(c.lines, Line{Book: book, Quantity: qty})
	return qty, nil
}

// RemoveLine removes the first line for bookID.
func (c *Cart) RemoveLine(bookID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(bookID)
	if i < 0 {
		return fmt.Errorf("cart line for book %d: %w", bookID, common.ErrNotFound)
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// UpdateQuantity sets the quantity of the first line for bookID. Under the
// strict policy the new quantity is checked against live stock via lookup.
func (c *Cart) UpdateQuantity(lookup Lookup, bookID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity %d: %w", qty, common.ErrInvalidQuantity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(bookID)
	if i < 0 {
		return fmt.Errorf("cart line for book %d: %w", bookID, common.ErrNotFound)
	}
	if c.opts.Policy == PolicyStrict {
		live, err := lookup.FindByID(bookID)
		if err != nil {
			return err
		}
		if qty > live.Stock {
			return fmt.Errorf("quantity %d exceeds stock %d: %w", qty, live.Stock, common.ErrInvalidQuantity)
		}
	}
	c.lines[i].Quantity = qty
	return nil
}

// Subtotal sums unit price times quantity over every line.
func (c *Cart) Subtotal() (decimal.Decimal, []LineDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SubtotalOf(c.lines)
}

// SubtotalOf prices lines without touching any cart.
func SubtotalOf(lines []Line) (decimal.Decimal, []LineDetail) {
	total := decimal.Zero
	details := make([]LineDetail, 0, len(lines))
	for _, l := range lines {
		lineTotal := l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		total = total.Add(lineTotal)
		details = append(details, LineDetail{
			BookID:    l.Book.ID,
			Title:     l.Book.Title,
			Author:    l.Book.Author,
			UnitPrice: l.Book.Price,
			Quantity:  l.Quantity,
			LineTotal: lineTotal,
		})
	}
	return total, details
}

// Take empties the cart and returns the lines it held. Lines added afterwards
// belong to the next checkout.
func (c *Cart) Take() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	taken := c.lines
	c.lines = nil
	return taken
}

// Restore puts lines returned by Take back at the front of the cart, ahead of
// anything added since.
func (c *Cart) Restore(lines []Line) {
	if len(lines) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(slices.Clone(lines), c.lines...)
}

// Lines returns a copy of the cart lines in order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len reports the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

func (c *Cart) indexOf(bookID int) int {
	for i, l := range c.lines {
		if l.Book.ID == bookID {
			return i
		}
	}
	return -1
}
