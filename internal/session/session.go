// Package session tracks the logged-in users of the running process. A
// session owns the user's cart and wishlist; both are discarded on logout.
package session

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/account"
	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/cart"
)

// Session is the state held for one authenticated user.
type Session struct {
	User     account.User
	Buyer    buyer.Buyer
	IsAdmin  bool
	Cart     *cart.Cart
	Wishlist *cart.Wishlist
	OpenedAt time.Time
}

// Manager maps usernames to open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cartOpts cart.Options
	now      func() time.Time
}

// NewManager constructs a manager whose carts use opts.
func NewManager(opts cart.Options) *Manager {
	return &Manager{sessions: map[string]*Session{}, cartOpts: opts, now: time.Now}
}

// Open starts a session for u, replacing any previous one along with its cart.
// b is ignored for admins.
func (m *Manager) Open(u account.User, b buyer.Buyer, isAdmin bool) *Session {
	s := &Session{
		User:     u,
		IsAdmin:  isAdmin,
		Cart:     cart.New(m.cartOpts),
		Wishlist: &cart.Wishlist{},
		OpenedAt: m.now(),
	}
	if !isAdmin {
		s.Buyer = b
	}
	m.mu.Lock()
	m.sessions[u.Username] = s
	m.mu.Unlock()
	return s
}

// Close ends the session; reports whether one was open.
func (m *Manager) Close(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[username]
	delete(m.sessions, username)
	return ok
}

// Get returns the open session for username.
func (m *Manager) Get(username string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[username]
	return s, ok
}

// Snapshot returns a copy of the open session taken under the manager lock.
// Cart and Wishlist still point at the live, self-locking values.
func (m *Manager) Snapshot(username string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[username]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// RecordPurchase stores the amount of the buyer's latest checkout. It is a
// no-op when the session has closed in the meantime.
func (m *Manager) RecordPurchase(username string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[username]; ok && !s.IsAdmin {
		s.Buyer.PurchaseAmount = amount
	}
}

// Active reports whether username has an open session.
func (m *Manager) Active(username string) bool {
	_, ok := m.Get(username)
	return ok
}

// Cart implements cart.Sessions.
func (m *Manager) Cart(username string) (*cart.Cart, bool) {
	s, ok := m.Get(username)
	if !ok {
		return nil, false
	}
	return s.Cart, true
}

// Wishlist implements cart.Sessions.
func (m *Manager) Wishlist(username string) (*cart.Wishlist, bool) {
	s, ok := m.Get(username)
	if !ok {
		return nil, false
	}
	return s.Wishlist, true
}

// AccountID implements order.Accounts.
func (m *Manager) AccountID(username string) (int, bool) {
	s, ok := m.Get(username)
	if !ok {
		return 0, false
	}
	return s.User.ID, true
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
