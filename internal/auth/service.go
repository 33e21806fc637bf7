// Package auth turns credentials into sessions. Login authenticates against
// the account registry, classifies the buyer, opens a session, and issues a
// signed access token that middleware checks on every request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/account"
	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/events"
	"github.com/noah-isme/bookstore/internal/obs"
	"github.com/noah-isme/bookstore/internal/session"
)

const defaultAccessTTL = 12 * time.Hour

// Service coordinates authentication and session lifecycle.
type Service struct {
	accounts *account.Registry
	sessions *session.Manager
	bus      *events.Bus
	logger   zerolog.Logger
	tokens   tokenIssuer
}

// Config configures the auth service.
type Config struct {
	Accounts       *account.Registry
	Sessions       *session.Manager
	Bus            *events.Bus
	Logger         zerolog.Logger
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// LoginInput carries credentials plus the membership detail that
// classifies Gold and Diamond buyers.
type LoginInput struct {
	Username     string
	Password     string
	StarLevel    int
	DiscountRate decimal.Decimal
}

// LoginResult is returned after a session has been opened.
type LoginResult struct {
	Profile      Profile   `json:"profile"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expires_at"`
}

// Profile describes the caller's open session.
type Profile struct {
	Username string       `json:"username"`
	ID       int          `json:"id"`
	Role     string       `json:"role"`
	Buyer    *buyer.Buyer `json:"buyer,omitempty"`
	OpenedAt time.Time    `json:"opened_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Accounts == nil || cfg.Sessions == nil {
		return nil, errors.New("auth: accounts and sessions are required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "bookstore"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "bookstore-api"
	}
	skew := max(cfg.ClockSkew, 0)

	return &Service{
		accounts: cfg.Accounts,
		sessions: cfg.Sessions,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		tokens: tokenIssuer{
			secret: []byte(secret),
			ttl:    ttl,
			signer: jwa.HS256,
			now:    time.Now,
			validator: TokenValidator{
				Issuer:    issuer,
				Audience:  audience,
				ClockSkew: skew,
				Algorithm: jwa.HS256,
			},
		},
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.tokens.now = now
	}
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, username, password string, id int) (account.User, error) {
	return s.accounts.Register(ctx, username, password, id)
}

// Login authenticates and opens a session. An invalid buyer id or membership
// detail ends the flow before any session exists.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	user, err := s.accounts.Authenticate(ctx, strings.TrimSpace(in.Username), in.Password)
	if err != nil {
		obs.ObserveLogin("failed")
		return LoginResult{}, err
	}

	role := RoleCustomer
	var b buyer.Buyer
	if user.ID == account.AdminID {
		role = RoleAdmin
	} else {
		b, err = buyer.FromID(user.ID, in.StarLevel, in.DiscountRate)
		if err != nil {
			obs.ObserveLogin("rejected")
			s.logger.Warn().Err(err).Str("username", user.Username).Int("account_id", user.ID).Msg("login rejected")
			return LoginResult{}, err
		}
	}

	token, expires, err := s.tokens.sign(user.Username, role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}

	sess := s.sessions.Open(user, b, role == RoleAdmin)
	s.accounts.MarkLoggedIn(user.Username)
	obs.ObserveLogin("success")
	s.logger.Info().Str("username", user.Username).Str("role", role).Msg("session opened")

	if s.bus != nil {
		payload := map[string]any{"username": user.Username, "role": role, "accountId": user.ID}
		if _, err := s.bus.Emit(ctx, events.TopicSessionStarted, user.Username, payload); err != nil {
			s.logger.Warn().Err(err).Msg("session event not published")
		}
	}
	return LoginResult{Profile: profileOf(*sess), AccessToken: token, AccessExpiry: expires}, nil
}

// Logout closes the session and clears the persisted logged-in flag.
func (s *Service) Logout(ctx context.Context, username string) error {
	s.sessions.Close(username)
	// a login's background mark must land before the logout flag
	s.accounts.Wait()
	return s.accounts.Logout(ctx, username)
}

// Me returns the profile of the open session.
func (s *Service) Me(username string) (Profile, error) {
	sess, ok := s.sessions.Snapshot(username)
	if !ok {
		return Profile{}, fmt.Errorf("session %q: %w", username, common.ErrNotFound)
	}
	return profileOf(sess), nil
}

// ParseAccessToken verifies a token and returns its claims.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	claims, err := s.tokens.parse(token)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	return claims, nil
}

func profileOf(sess session.Session) Profile {
	p := Profile{Username: sess.User.Username, ID: sess.User.ID, Role: RoleCustomer, OpenedAt: sess.OpenedAt}
	if sess.IsAdmin {
		p.Role = RoleAdmin
		return p
	}
	b := sess.Buyer
	p.Buyer = &b
	return p
}
