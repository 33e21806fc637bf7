package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/lock"
)

// ErrPersist marks a mutation that applied in memory but could not be saved.
var ErrPersist = errors.New("catalog not persisted")

// Service couples the in-memory catalog with its store behind the advisory lock.
type Service struct {
	catalog *Catalog
	store   *FileStore
	locker  lock.Locker
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  *FileStore
	Locker lock.Locker
	Logger zerolog.Logger
}

// NewService loads the catalog from the store. A load failure is logged and the
// default seed catalog is used instead.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocal()
	}
	logger := cfg.Logger.With().Str("component", "catalog").Logger()
	books, err := cfg.Store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("catalog load failed, falling back to default books")
		books = DefaultBooks()
	}
	return &Service{catalog: New(books), store: cfg.Store, locker: cfg.Locker, logger: logger}, nil
}

// Catalog exposes the live inventory for read paths and cart lookups.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Mutate runs fn under the catalog lock and persists the result. fn's error aborts
// persistence; a save failure is wrapped with ErrPersist.
func (s *Service) Mutate(ctx context.Context, fn func(*Catalog) error) error {
	return s.locker.WithLock(ctx, lock.KeyCatalog, func(context.Context) error {
		if err := fn(s.catalog); err != nil {
			return err
		}
		if err := s.store.Save(s.catalog.All()); err != nil {
			return fmt.Errorf("%w: %w", ErrPersist, err)
		}
		return nil
	})
}

// List returns the books matching query, or all books when query is empty.
func (s *Service) List(query string) []Book {
	return slices.Collect(s.catalog.Search(query))
}

// Get returns one book.
func (s *Service) Get(id int) (Book, error) {
	return s.catalog.FindByID(id)
}

// Rate records a rating and persists the catalog.
func (s *Service) Rate(ctx context.Context, id int, rating float64) (Book, error) {
	var out Book
	err := s.Mutate(ctx, func(c *Catalog) error {
		b, err := c.AddRating(id, rating)
		out = b
		return err
	})
	return out, err
}

// AddBook inserts a new book.
func (s *Service) AddBook(ctx context.Context, b Book) error {
	return s.Mutate(ctx, func(c *Catalog) error { return c.Add(b) })
}

// RemoveBook deletes a book.
func (s *Service) RemoveBook(ctx context.Context, id int) error {
	return s.Mutate(ctx, func(c *Catalog) error { return c.Remove(id) })
}

// UpdateStock overwrites a book's stock.
func (s *Service) UpdateStock(ctx context.Context, id, qty int) (Book, error) {
	var out Book
	err := s.Mutate(ctx, func(c *Catalog) error {
		b, err := c.SetStock(id, qty)
		out = b
		return err
	})
	return out, err
}
