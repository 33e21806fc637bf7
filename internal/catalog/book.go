package catalog

import (
	"github.com/shopspring/decimal"
)

// Book is a catalog entry. Values are copied out of the catalog, never shared.
type Book struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	RatingSum   float64         `json:"-"`
	RatingCount int             `json:"ratingCount"`
}

// AverageRating is RatingSum/RatingCount, or 0 for an unrated book.
func (b Book) AverageRating() float64 {
	if b.RatingCount == 0 {
		return 0
	}
	return b.RatingSum / float64(b.RatingCount)
}

// View is the JSON shape returned by the catalog endpoints.
type View struct {
	Book
	AverageRating float64 `json:"averageRating"`
}

// ViewOf pairs a book with its derived rating.
func ViewOf(b Book) View {
	return View{Book: b, AverageRating: b.AverageRating()}
}

// DefaultBooks is the seed catalog used when no catalog file exists.
func DefaultBooks() []Book {
	seed := []struct {
		title, author, price string
		stock                int
	}{
		{"The Great Gatsby", "F. Scott Fitzgerald", "10.99", 10},
		{"1984", "George Orwell", "8.99", 5},
		{"To Kill a Mockingbird", "Harper Lee", "12.50", 8},
		{"Pride and Prejudice", "Jane Austen", "9.99", 7},
		{"The Catcher in the Rye", "J.D. Salinger", "11.20", 6},
		{"The Hobbit", "J.R.R. Tolkien", "15.00", 4},
		{"Moby Dick", "Herman Melville", "13.45", 9},
		{"War and Peace", "Leo Tolstoy", "20.00", 3},
		{"The Odyssey", "Homer", "14.25", 12},
		{"Hamlet", "William Shakespeare", "9.75", 15},
	}
	books := make([]Book, 0, len(seed))
	for i, s := range seed {
		books = append(books, Book{
			ID:     i + 1,
			Title:  s.title,
			Author: s.author,
			Price:  decimal.RequireFromString(s.price),
			Stock:  s.stock,
		})
	}
	return books
}
