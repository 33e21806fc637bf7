package session_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/account"
	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/cart"
	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/session"
)

var (
	_ cart.Sessions = (*session.Manager)(nil)
)

func TestOpenCloseLifecycle(t *testing.T) {
	m := session.NewManager(cart.Options{})
	gold, err := buyer.FromID(7, 4, decimal.Zero)
	require.NoError(t, err)

	s := m.Open(account.User{Username: "alice", ID: 7}, gold, false)
	require.Equal(t, buyer.Gold, s.Buyer.Kind)
	require.True(t, m.Active("alice"))

	id, ok := m.AccountID("alice")
	require.True(t, ok)
	require.Equal(t, 7, id)

	c, ok := m.Cart("alice")
	require.True(t, ok)
	require.Same(t, s.Cart, c)

	require.True(t, m.Close("alice"))
	require.False(t, m.Close("alice"))
	_, ok = m.Wishlist("alice")
	require.False(t, ok)
	require.Zero(t, m.Len())
}

func TestReopenStartsFreshCart(t *testing.T) {
	books := catalog.New(catalog.DefaultBooks())
	m := session.NewManager(cart.Options{})
	ordinary, err := buyer.FromID(1500, 0, decimal.Zero)
	require.NoError(t, err)

	first := m.Open(account.User{Username: "bob", ID: 1500}, ordinary, false)
	_, err = first.Cart.AddLine(books, 1, 1)
	require.NoError(t, err)

	second := m.Open(account.User{Username: "bob", ID: 1500}, ordinary, false)
	require.Zero(t, second.Cart.Len())
	require.Equal(t, 1, m.Len())
}

func TestAdminSessionHasNoBuyer(t *testing.T) {
	m := session.NewManager(cart.Options{})
	gold, err := buyer.FromID(7, 4, decimal.Zero)
	require.NoError(t, err)

	s := m.Open(account.User{Username: "admin", ID: account.AdminID}, gold, true)
	require.True(t, s.IsAdmin)
	require.Equal(t, buyer.Buyer{}, s.Buyer)
}

func TestRecordPurchaseUpdatesSessionBuyer(t *testing.T) {
	m := session.NewManager(cart.Options{})
	gold, err := buyer.FromID(7, 4, decimal.Zero)
	require.NoError(t, err)
	m.Open(account.User{Username: "kim", ID: 7}, gold, false)

	m.RecordPurchase("kim", decimal.RequireFromString("43.20"))
	snap, ok := m.Snapshot("kim")
	require.True(t, ok)
	require.Equal(t, "43.20", snap.Buyer.PurchaseAmount.StringFixed(2))
	require.Equal(t, 4, snap.Buyer.StarLevel)

	m.Close("kim")
	m.RecordPurchase("kim", decimal.NewFromInt(1))
	_, ok = m.Snapshot("kim")
	require.False(t, ok)
}
