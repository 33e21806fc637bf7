package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/common"
)

// AdminID is the reserved account id of the administrator.
const AdminID = 0

// ErrClosed is returned once the registry has been shut down.
var ErrClosed = errors.New("account registry closed")

// Registry owns the account map. A single goroutine holds the state; every
// operation is a request sent to it and answered before the caller continues.
type Registry struct {
	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
	closeMu  sync.Once
	bg       sync.WaitGroup

	store    *FileStore
	sessions *SessionLog
	logger   zerolog.Logger
	params   *argon2id.Params
}

type request struct {
	fn   func(users map[string]User) error
	done chan error
}

// RegistryConfig groups Registry dependencies.
type RegistryConfig struct {
	Store    *FileStore
	Sessions *SessionLog
	Logger   zerolog.Logger
	// HashParams overrides argon2id cost; nil uses argon2id.DefaultParams.
	HashParams *argon2id.Params
}

// NewRegistry loads accounts, closes sessions left open by a previous run and
// starts the owner goroutine.
// Load failures are logged and the registry starts empty.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("account: store is required")
	}
	logger := cfg.Logger.With().Str("component", "accounts").Logger()
	users, err := cfg.Store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("account load failed, starting empty")
		users = map[string]User{}
	}
	if cfg.Sessions != nil {
		flags, err := cfg.Sessions.Load()
		if err != nil {
			logger.Warn().Err(err).Msg("session log load failed")
		}
		// Open sessions live in memory and end with the process, so every
		// user the log still shows as logged in is closed out.
		closed := 0
		for name, in := range flags {
			if _, ok := users[name]; !ok || !in {
				continue
			}
			if err := cfg.Sessions.Append(name, false); err != nil {
				logger.Warn().Err(err).Str("username", name).Msg("session close not recorded")
			}
			closed++
		}
		if closed > 0 {
			logger.Info().Int("sessions", closed).Msg("stale sessions closed on startup")
		}
	}
	params := cfg.HashParams
	if params == nil {
		params = argon2id.DefaultParams
	}
	r := &Registry{
		requests: make(chan request),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		store:    cfg.Store,
		sessions: cfg.Sessions,
		logger:   logger,
		params:   params,
	}
	go r.loop(users)
	return r, nil
}

func (r *Registry) loop(users map[string]User) {
	defer close(r.stopped)
	for {
		select {
		case req := <-r.requests:
			req.done <- req.fn(users)
		case <-r.quit:
			return
		}
	}
}

// do hands fn to the owner goroutine and waits for its result.
func (r *Registry) do(ctx context.Context, fn func(users map[string]User) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case r.requests <- req:
	case <-r.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.done
}

// Register creates an account. The id must fall in a buyer range and both the
// username and id must be unused.
func (r *Registry) Register(ctx context.Context, username, password string, id int) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, " \t\r\n") {
		return User{}, fmt.Errorf("username must be a single non-empty word: %w", common.ErrInvalidInput)
	}
	if password == "" {
		return User{}, fmt.Errorf("password is required: %w", common.ErrInvalidInput)
	}
	if _, err := buyer.KindForID(id); err != nil {
		return User{}, err
	}
	hash, err := argon2id.CreateHash(password, r.params)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return r.insert(ctx, User{Username: username, PasswordHash: hash, ID: id})
}

// EnsureAdmin creates the administrator account with AdminID when it is missing.
func (r *Registry) EnsureAdmin(ctx context.Context, username, password string) error {
	if _, err := r.Get(ctx, username); err == nil {
		return nil
	}
	hash, err := argon2id.CreateHash(password, r.params)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = r.insert(ctx, User{Username: username, PasswordHash: hash, ID: AdminID})
	if errors.Is(err, common.ErrDuplicate) {
		return nil
	}
	return err
}

func (r *Registry) insert(ctx context.Context, u User) (User, error) {
	err := r.do(ctx, func(users map[string]User) error {
		if _, ok := users[u.Username]; ok {
			return fmt.Errorf("username %q: %w", u.Username, common.ErrDuplicate)
		}
		for _, existing := range users {
			if existing.ID == u.ID {
				return fmt.Errorf("account id %d: %w", u.ID, common.ErrDuplicate)
			}
		}
		users[u.Username] = u
		if err := r.store.Save(users); err != nil {
			delete(users, u.Username)
			return fmt.Errorf("persist accounts: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Get returns a copy of the account.
func (r *Registry) Get(ctx context.Context, username string) (User, error) {
	var out User
	err := r.do(ctx, func(users map[string]User) error {
		u, ok := users[username]
		if !ok {
			return fmt.Errorf("account %q: %w", username, common.ErrNotFound)
		}
		out = u
		return nil
	})
	return out, err
}

// Authenticate checks the password. Unknown users and wrong passwords both
// report ErrAuthenticationFailed.
func (r *Registry) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := r.Get(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		return User{}, common.ErrAuthenticationFailed
	}
	if err != nil {
		return User{}, err
	}
	ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil || !ok {
		return User{}, common.ErrAuthenticationFailed
	}
	return u, nil
}

// MarkLoggedIn flags the user as logged in and appends to the session log in
// the background. The caller does not wait; use Wait to drain pending updates.
func (r *Registry) MarkLoggedIn(username string) {
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		if err := r.setLoggedIn(context.Background(), username, true); err != nil {
			r.logger.Warn().Err(err).Str("username", username).Msg("mark logged in failed")
		}
	}()
}

// Logout clears the logged-in flag.
func (r *Registry) Logout(ctx context.Context, username string) error {
	return r.setLoggedIn(ctx, username, false)
}

func (r *Registry) setLoggedIn(ctx context.Context, username string, in bool) error {
	return r.do(ctx, func(users map[string]User) error {
		u, ok := users[username]
		if !ok {
			return fmt.Errorf("account %q: %w", username, common.ErrNotFound)
		}
		u.LoggedIn = in
		users[username] = u
		if r.sessions == nil {
			return nil
		}
		if err := r.sessions.Append(username, in); err != nil {
			return fmt.Errorf("session log: %w", err)
		}
		return nil
	})
}

// IsLoggedIn reports the user's logged-in flag.
func (r *Registry) IsLoggedIn(ctx context.Context, username string) (bool, error) {
	u, err := r.Get(ctx, username)
	if err != nil {
		return false, err
	}
	return u.LoggedIn, nil
}

// Wait blocks until background session updates have finished.
func (r *Registry) Wait() {
	r.bg.Wait()
}

// Close drains background updates and stops the owner goroutine.
func (r *Registry) Close() {
	r.closeMu.Do(func() {
		r.bg.Wait()
		close(r.quit)
		<-r.stopped
	})
}
