package catalog_test

import (
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/common"
)

func ids(books []catalog.Book) []int {
	out := make([]int, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}

func TestSearchMatchesTitleOrAuthorCaseInsensitive(t *testing.T) {
	c := catalog.New(catalog.DefaultBooks())

	require.Equal(t, []int{6}, ids(slices.Collect(c.Search("hobbit"))))
	require.Equal(t, []int{2}, ids(slices.Collect(c.Search("ORWELL"))))
	require.Equal(t, []int{1, 5, 6, 9}, ids(slices.Collect(c.Search("THE"))))
	require.Empty(t, slices.Collect(c.Search("zzz")))
	require.Len(t, slices.Collect(c.Search("")), 10)
}

func TestSearchIsRestartableAndStopsEarly(t *testing.T) {
	c := catalog.New(catalog.DefaultBooks())
	seq := c.Search("the")

	first := ids(slices.Collect(seq))
	second := ids(slices.Collect(seq))
	require.Equal(t, first, second)
	require.NotEmpty(t, first)

	n := 0
	for range seq {
		n++
		break
	}
	require.Equal(t, 1, n)
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	c := catalog.New(catalog.DefaultBooks())

	b, err := c.AdjustStock(8, -3)
	require.NoError(t, err)
	require.Zero(t, b.Stock)

	_, err = c.AdjustStock(8, -1)
	require.ErrorIs(t, err, common.ErrInvalidQuantity)
	b, err = c.FindByID(8)
	require.NoError(t, err)
	require.Zero(t, b.Stock)

	_, err = c.AdjustStock(99, 1)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAddRatingBounds(t *testing.T) {
	c := catalog.New(catalog.DefaultBooks())

	_, err := c.AddRating(1, 0.5)
	require.ErrorIs(t, err, common.ErrInvalidRating)
	_, err = c.AddRating(1, 5.5)
	require.ErrorIs(t, err, common.ErrInvalidRating)

	_, err = c.AddRating(1, 4)
	require.NoError(t, err)
	b, err := c.AddRating(1, 5)
	require.NoError(t, err)
	require.InDelta(t, 4.5, b.AverageRating(), 1e-9)

	b, err = c.FindByID(2)
	require.NoError(t, err)
	require.Zero(t, b.AverageRating())
}

func TestAdminOperations(t *testing.T) {
	c := catalog.New(catalog.DefaultBooks())

	err := c.Add(catalog.Book{ID: 3, Title: "Dup", Author: "X", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, common.ErrDuplicate)

	err = c.Add(catalog.Book{ID: 11, Title: "Neg", Author: "X", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, common.ErrInvalidQuantity)

	err = c.Add(catalog.Book{ID: 11, Title: "a|b", Author: "X", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	require.NoError(t, c.Add(catalog.Book{ID: 11, Title: "Dune", Author: "Frank Herbert", Price: decimal.RequireFromString("18.5"), Stock: 2}))
	require.NoError(t, c.Remove(5))
	require.ErrorIs(t, c.Remove(5), common.ErrNotFound)
	require.Equal(t, []int{1, 2, 3, 4, 6, 7, 8, 9, 10, 11}, ids(c.All()))

	b, err := c.FindByID(11)
	require.NoError(t, err)
	require.Equal(t, "Dune", b.Title)

	_, err = c.SetStock(11, -1)
	require.ErrorIs(t, err, common.ErrInvalidQuantity)
	b, err = c.SetStock(11, 40)
	require.NoError(t, err)
	require.Equal(t, 40, b.Stock)
}

func TestAllReturnsCopy(t *testing.T) {
	c := catalog.New(catalog.DefaultBooks())
	snapshot := c.All()
	snapshot[0].Stock = 999

	b, err := c.FindByID(1)
	require.NoError(t, err)
	require.Equal(t, 10, b.Stock)
}
