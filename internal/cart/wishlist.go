package cart

import (
	"sync"

	"github.com/noah-isme/bookstore/internal/catalog"
)

// Wishlist is a session-scoped list of book snapshots.
type Wishlist struct {
	mu    sync.Mutex
	books []catalog.Book
}

// Add snapshots the book and appends it. Adding a book already listed is a no-op.
func (w *Wishlist) Add(lookup Lookup, bookID int) (catalog.Book, error) {
	book, err := lookup.FindByID(bookID)
	if err != nil {
		return catalog.Book{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range w.books {
		if b.ID == bookID {
			return b, nil
		}
	}
	w.books = append(w.books, book)
	return book, nil
}

// Books returns the wishlist in insertion order.
func (w *Wishlist) Books() []catalog.Book {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]catalog.Book, len(w.books))
	copy(out, w.books)
	return out
}
