// Package catalog holds the in-memory book inventory and its flat-file persistence.
package catalog

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/noah-isme/bookstore/internal/common"
)

// Catalog is the ordered, id-indexed book inventory. It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	books []Book
	index map[int]int
}

// New builds a catalog from books in the given order. Later duplicates of an id are dropped.
func New(books []Book) *Catalog {
	c := &Catalog{index: make(map[int]int, len(books))}
	for _, b := range books {
		if _, dup := c.index[b.ID]; dup {
			continue
		}
		c.index[b.ID] = len(c.books)
		c.books = append(c.books, b)
	}
	return c
}

// FindByID returns a copy of the book with the given id.
func (c *Catalog) FindByID(id int) (Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return Book{}, fmt.Errorf("book %d: %w", id, common.ErrNotFound)
	}
	return c.books[i], nil
}

// AdjustStock adds delta to the stock of a book. A result below zero is rejected
// and leaves the stock unchanged.
func (c *Catalog) AdjustStock(id, delta int) (Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return Book{}, fmt.Errorf("book %d: %w", id, common.ErrNotFound)
	}
	next := c.books[i].Stock + delta
	if next < 0 {
		return c.books[i], fmt.Errorf("book %d stock %d%+d: %w", id, c.books[i].Stock, delta, common.ErrInvalidQuantity)
	}
	c.books[i].Stock = next
	return c.books[i], nil
}

// SetStock overwrites the stock of a book.
func (c *Catalog) SetStock(id, qty int) (Book, error) {
	if qty < 0 {
		return Book{}, fmt.Errorf("stock %d: %w", qty, common.ErrInvalidQuantity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return Book{}, fmt.Errorf("book %d: %w", id, common.ErrNotFound)
	}
	c.books[i].Stock = qty
	return c.books[i], nil
}

// AddRating records a rating in [1, 5].
func (c *Catalog) AddRating(id int, rating float64) (Book, error) {
	if rating < 1 || rating > 5 {
		return Book{}, fmt.Errorf("rating %.2f: %w", rating, common.ErrInvalidRating)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return Book{}, fmt.Errorf("book %d: %w", id, common.ErrNotFound)
	}
	c.books[i].RatingSum += rating
	c.books[i].RatingCount++
	return c.books[i], nil
}

// Add appends a new book.
func (c *Catalog) Add(b Book) error {
	if b.Price.IsNegative() || b.Stock < 0 {
		return fmt.Errorf("book %d price %s stock %d: %w", b.ID, b.Price, b.Stock, common.ErrInvalidQuantity)
	}
	if strings.ContainsAny(b.Title+b.Author, "|\r\n") {
		return fmt.Errorf("book %d: title and author may not contain '|' or line breaks: %w", b.ID, common.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[b.ID]; ok {
		return fmt.Errorf("book %d: %w", b.ID, common.ErrDuplicate)
	}
	c.index[b.ID] = len(c.books)
	c.books = append(c.books, b)
	return nil
}

// Remove deletes a book, preserving the order of the rest.
func (c *Catalog) Remove(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("book %d: %w", id, common.ErrNotFound)
	}
	c.books = append(c.books[:i], c.books[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.books); j++ {
		c.index[c.books[j].ID] = j
	}
	return nil
}

// All returns a snapshot of every book in catalog order.
func (c *Catalog) All() []Book {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Book, len(c.books))
	copy(out, c.books)
	return out
}

// Len reports the number of books.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.books)
}

// Search yields books whose title or author contains keyword, ignoring case, in
// catalog order. Each iteration works over a fresh snapshot, so the sequence can
// be ranged over repeatedly. An empty keyword matches every book.
func (c *Catalog) Search(keyword string) iter.Seq[Book] {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	return func(yield func(Book) bool) {
		for _, b := range c.All() {
			if needle != "" &&
				!strings.Contains(strings.ToLower(b.Title), needle) &&
				!strings.Contains(strings.ToLower(b.Author), needle) {
				continue
			}
			if !yield(b) {
				return
			}
		}
	}
}
