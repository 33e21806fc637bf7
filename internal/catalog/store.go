package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/common"
)

// FileStore persists the catalog as one "id|title|author|price|stock|averageRating" line per book.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore constructs a store rooted at path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger.With().Str("component", "catalog_store").Logger()}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the catalog file. A missing file yields the default seed catalog.
// Lines with fewer than five fields are skipped.
func (s *FileStore) Load() ([]Book, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info().Str("path", s.path).Msg("no catalog file, using default books")
		return DefaultBooks(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}

	var books []Book
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b, err := parseBookLine(line)
		if err != nil {
			s.logger.Warn().Err(err).Int("line", lineNo).Msg("skipping malformed catalog line")
			continue
		}
		books = append(books, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan catalog %s: %w", s.path, err)
	}
	return books, nil
}

// Save rewrites the catalog file atomically.
func (s *FileStore) Save(books []Book) error {
	var buf bytes.Buffer
	for _, b := range books {
		buf.WriteString(formatBookLine(b))
		buf.WriteByte('\n')
	}
	if err := common.WriteFileAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

func formatBookLine(b Book) string {
	return strings.Join([]string{
		strconv.Itoa(b.ID),
		b.Title,
		b.Author,
		b.Price.String(),
		strconv.Itoa(b.Stock),
		strconv.FormatFloat(b.AverageRating(), 'f', -1, 64),
	}, "|")
}

// parseBookLine restores a book. The stored average comes back as a single
// rating so the displayed average survives a restart.
func parseBookLine(line string) (Book, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 5 {
		return Book{}, fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}
	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Book{}, fmt.Errorf("id: %w", err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(fields[3]))
	if err != nil {
		return Book{}, fmt.Errorf("price: %w", err)
	}
	stock, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return Book{}, fmt.Errorf("stock: %w", err)
	}
	if price.IsNegative() || stock < 0 {
		return Book{}, fmt.Errorf("negative price or stock")
	}
	b := Book{ID: id, Title: fields[1], Author: fields[2], Price: price, Stock: stock}
	if len(fields) > 5 {
		if avg, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64); err == nil && avg >= 1 && avg <= 5 {
			b.RatingSum, b.RatingCount = avg, 1
		}
	}
	return b, nil
}
