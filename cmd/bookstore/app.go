package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/account"
	"github.com/noah-isme/bookstore/internal/auth"
	"github.com/noah-isme/bookstore/internal/cart"
	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/checkout"
	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/config"
	"github.com/noah-isme/bookstore/internal/events"
	"github.com/noah-isme/bookstore/internal/health"
	"github.com/noah-isme/bookstore/internal/lock"
	"github.com/noah-isme/bookstore/internal/notify"
	"github.com/noah-isme/bookstore/internal/obs"
	"github.com/noah-isme/bookstore/internal/order"
	"github.com/noah-isme/bookstore/internal/pricing"
	"github.com/noah-isme/bookstore/internal/ratelimit"
	"github.com/noah-isme/bookstore/internal/security"
	"github.com/noah-isme/bookstore/internal/session"
	"github.com/noah-isme/bookstore/internal/voucher"
)

// infra carries the optional external dependencies chosen in main.
type infra struct {
	Redis      redis.UniversalClient
	Publishers []events.Publisher
	// Notifier replaces inline email delivery, e.g. with the asynq queue.
	Notifier notify.Notifier
	Mailer   common.EmailSender
}

type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	catalog  *catalog.Service
	accounts *account.Registry
	sessions *session.Manager
	auth     *auth.Service
	orders   *order.FileLog
	checkout *checkout.Service
	limiter  ratelimit.Limiter
	bus      *events.Bus
	redis    redis.UniversalClient
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, deps infra) (*app, error) {
	var locker lock.Locker = lock.NewLocal()
	if deps.Redis != nil {
		locker = lock.Redis{R: deps.Redis, TTL: cfg.LockTTL, RetryBackoff: cfg.LockRetryBackoff}
	}

	books, err := catalog.NewService(catalog.ServiceConfig{
		Store:  catalog.NewFileStore(cfg.Path(cfg.BookDataFile), logger),
		Locker: locker,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	accounts, err := account.NewRegistry(account.RegistryConfig{
		Store:    account.NewFileStore(cfg.Path(cfg.UserDataFile), logger),
		Sessions: account.NewSessionLog(cfg.Path(cfg.SessionDataFile)),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	if err := accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		accounts.Close()
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	bus := &events.Bus{Publishers: append([]events.Publisher{events.LogPublisher{Logger: obs.Component(logger, "events")}}, deps.Publishers...)}

	sessions := session.NewManager(cart.Options{
		MergeDuplicates: cfg.CartMergeDuplicateLines,
		Policy:          cfg.CartQuantityPolicy,
	})
	authSvc, err := auth.NewService(auth.Config{
		Accounts:       accounts,
		Sessions:       sessions,
		Bus:            bus,
		Logger:         obs.Component(logger, "auth"),
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		accounts.Close()
		return nil, err
	}

	coupons, err := voucher.NewRegistry(cfg.Coupons)
	if err != nil {
		accounts.Close()
		return nil, err
	}

	notifier := deps.Notifier
	if notifier == nil && cfg.NotifyEnabled {
		mailer := deps.Mailer
		if mailer == nil {
			mailer = notify.LogMailer{Logger: obs.Component(logger, "mail")}
		}
		notifier = notify.EmailNotifier{Mail: mailer, Enabled: true, From: cfg.NotifyFrom, Delay: cfg.NotifyDelay}
	}

	orders := order.NewFileLog(cfg.DataDir, cfg.OrderLogFile, cfg.OrderHistoryPrefix)
	checkoutSvc, err := checkout.NewService(checkout.Config{
		Pricing:  pricing.NewEngine(coupons),
		Orders:   orders,
		Stock:    books,
		Notifier: notifier,
		Bus:      bus,
		Logger:   obs.Component(logger, "checkout"),
	})
	if err != nil {
		accounts.Close()
		return nil, err
	}

	var limiter ratelimit.Limiter
	if deps.Redis != nil {
		limiter, err = ratelimit.NewRedis(deps.Redis, cfg.LoginRateLimit, "bookstore:login")
	} else {
		limiter, err = ratelimit.NewMemory(cfg.LoginRateLimit, "bookstore:login")
	}
	if err != nil {
		accounts.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		catalog:  books,
		accounts: accounts,
		sessions: sessions,
		auth:     authSvc,
		orders:   orders,
		checkout: checkoutSvc,
		limiter:  limiter,
		bus:      bus,
		redis:    deps.Redis,
	}, nil
}

// close drains background work. The HTTP server must already be stopped.
func (a *app) close() {
	a.checkout.Wait()
	a.accounts.Close()
}

type routerOptions struct {
	Metrics *obs.HTTPMetrics
	// Pprof is mounted under /debug/pprof when set.
	Pprof   http.Handler
	Tracing bool
	MaxBody int64
	HSTS    bool
}

func (a *app) routes(opts routerOptions) http.Handler {
	authHandler := &auth.Handler{Service: a.auth}
	authMiddleware := auth.Middleware{Service: a.auth}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: a.catalog})
	cartHandler := &cart.Handler{Sessions: a.sessions, Books: a.catalog.Catalog()}
	checkoutHandler := &checkout.Handler{Service: a.checkout, Sessions: a.sessions}
	orderHandler := &order.Handler{Log: a.orders, Accounts: a.sessions}
	loginLimit := ratelimit.Handler{
		Limiter: a.limiter,
		OnError: func(err error) { a.logger.Warn().Err(err).Msg("login rate limiter unavailable") },
	}

	probes := map[string]health.Probe{"data_dir": health.DataDirProbe(a.cfg.DataDir)}
	if a.redis != nil {
		probes["redis"] = health.RedisProbe(a.redis)
	}
	healthHandler := health.Handler{Probes: probes, Timeout: envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: a.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(a.cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{HSTS: opts.HSTS}.Middleware)
	r.Use(security.BodyLimit{Max: opts.MaxBody}.Middleware)

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if opts.Pprof != nil {
		r.Mount("/debug/pprof", opts.Pprof)
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", authHandler.Register)
			ar.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			ar.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Post("/logout", authHandler.Logout)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Get("/books", catalogHandler.List)
		v.Get("/books/{id}", catalogHandler.Get)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Post("/books/{id}/ratings", catalogHandler.Rate)

			authR.Get("/cart", cartHandler.Get)
			authR.Post("/cart/lines", cartHandler.AddLine)
			authR.Patch("/cart/lines/{bookId}", cartHandler.UpdateLine)
			authR.Delete("/cart/lines/{bookId}", cartHandler.RemoveLine)
			authR.Get("/wishlist", cartHandler.Wishlist)
			authR.Post("/wishlist", cartHandler.AddWishlist)

			authR.Post("/checkout", checkoutHandler.Checkout)
			authR.Get("/orders", orderHandler.List)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(authMiddleware.RequireAdmin)
			admin.Post("/books", catalogHandler.AdminAdd)
			admin.Delete("/books/{id}", catalogHandler.AdminRemove)
			admin.Put("/books/{id}/stock", catalogHandler.AdminSetStock)
		})
	})

	if opts.Tracing {
		return obs.Tracing("bookstore")(r)
	}
	return r
}
