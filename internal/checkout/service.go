// Package checkout turns a session's cart into a recorded order.
//
// The pipeline runs CartNonEmpty, PricingApplied, OrderRecorded,
// StockDecremented, CartCleared, NotificationSent in that order. The cart's
// lines are taken out when the pipeline starts and only handed back when the
// order cannot be recorded, so the caller can retry. Nothing after that point
// rolls back.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bookstore/internal/buyer"
	"github.com/noah-isme/bookstore/internal/cart"
	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/events"
	"github.com/noah-isme/bookstore/internal/notify"
	"github.com/noah-isme/bookstore/internal/obs"
	"github.com/noah-isme/bookstore/internal/order"
	"github.com/noah-isme/bookstore/internal/pricing"
)

// ErrOrderRecord wraps the I/O failure that stopped a checkout at OrderRecorded.
var ErrOrderRecord = errors.New("order could not be recorded")

var tracer = otel.Tracer("checkout")

// stockStepTimeout bounds the wait for the catalog lock after an order is recorded.
const stockStepTimeout = 10 * time.Second

// Recorder persists orders.
type Recorder interface {
	Record(o order.Order) error
}

// Stock applies catalog mutations under the catalog lock.
type Stock interface {
	Mutate(ctx context.Context, fn func(*catalog.Catalog) error) error
}

// Config wires the pipeline collaborators. Notifier and Bus are optional.
type Config struct {
	Pricing  *pricing.Engine
	Orders   Recorder
	Stock    Stock
	Notifier notify.Notifier
	Bus      *events.Bus
	Logger   zerolog.Logger
}

// Request is one checkout attempt.
type Request struct {
	Username string
	Buyer    buyer.Buyer
	Cart     *cart.Cart
	Coupon   string
}

// SkippedLine is a cart line whose stock could not be decremented.
type SkippedLine struct {
	BookID   int    `json:"bookId"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// Result describes a completed checkout.
type Result struct {
	Order   order.Order   `json:"order"`
	Quote   pricing.Quote `json:"quote"`
	Skipped []SkippedLine `json:"skipped"`
}

// Service runs the checkout pipeline.
type Service struct {
	pricing  *pricing.Engine
	orders   Recorder
	stock    Stock
	notifier notify.Notifier
	bus      *events.Bus
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() uuid.UUID

	pending sync.WaitGroup
}

// NewService validates cfg.
func NewService(cfg Config) (*Service, error) {
	if cfg.Pricing == nil || cfg.Orders == nil || cfg.Stock == nil {
		return nil, errors.New("checkout: pricing, orders and stock are required")
	}
	return &Service{
		pricing:  cfg.Pricing,
		orders:   cfg.Orders,
		stock:    cfg.Stock,
		notifier: cfg.Notifier,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		now:      time.Now,
		newID:    uuid.New,
	}, nil
}

// Checkout runs the pipeline for req.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.String("username", req.Username)))
	defer span.End()

	res, err := s.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	log := s.logger.With().Str("username", req.Username).Logger()
	if req.Cart == nil {
		obs.ObserveCheckout("empty", 0)
		return Result{}, common.ErrEmptyCart
	}

	// Taking the lines empties the cart at once, so a concurrent checkout of
	// the same cart sees it empty and lines added meanwhile stay for later.
	var taken []cart.Line
	step(ctx, "cart_non_empty", func(context.Context) {
		taken = req.Cart.Take()
	})
	if len(taken) == 0 {
		obs.ObserveCheckout("empty", 0)
		return Result{}, common.ErrEmptyCart
	}

	var (
		subtotal decimal.Decimal
		details  []cart.LineDetail
		quote    pricing.Quote
	)
	b := req.Buyer
	step(ctx, "pricing_applied", func(context.Context) {
		subtotal, details = cart.SubtotalOf(taken)
		quote = s.pricing.Price(subtotal, b, req.Coupon)
		b.PurchaseAmount = quote.Total
	})
	if quote.CouponStatus == pricing.CouponRejected {
		log.Warn().Str("coupon", req.Coupon).Msg("coupon rejected")
	}

	o := order.Order{
		ID:           s.newID(),
		Username:     req.Username,
		Buyer:        b,
		Lines:        linesOf(details),
		Subtotal:     subtotal,
		Coupon:       quote.Coupon,
		CouponStatus: string(quote.CouponStatus),
		Total:        quote.Total,
		CreatedAt:    s.now(),
	}
	if err := stage(ctx, "order_recorded", func(context.Context) error { return s.orders.Record(o) }); err != nil {
		req.Cart.Restore(taken)
		obs.ObserveCheckout("record_failed", 0)
		log.Error().Err(err).Str("order_id", o.ID.String()).Msg("order not recorded")
		return Result{}, fmt.Errorf("%w: %w", ErrOrderRecord, err)
	}

	// The order is on disk from here on; a caller hanging up must not stop
	// the stock step.
	stockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stockStepTimeout)
	skipped := s.decrementStock(stockCtx, log, o)
	cancel()

	step(ctx, "cart_cleared", func(ctx context.Context) {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("lines", len(taken)))
	})

	step(ctx, "notification_sent", func(ctx context.Context) {
		s.notify(ctx, log, notify.OrderPlaced(req.Username, o.ID.String()))
	})

	if s.bus != nil {
		payload := map[string]any{
			"orderId":  o.ID.String(),
			"username": o.Username,
			"buyerId":  o.Buyer.ID,
			"total":    pricing.Round2(o.Total).StringFixed(2),
			"lines":    len(o.Lines),
		}
		if _, err := s.bus.Emit(ctx, events.TopicOrderCreated, o.ID.String(), payload); err != nil {
			log.Warn().Err(err).Msg("order event not published")
		}
	}

	amount, _ := pricing.Round2(o.Total).Float64()
	obs.ObserveCheckout("success", amount)
	log.Info().Str("order_id", o.ID.String()).Str("total", pricing.Round2(o.Total).StringFixed(2)).Msg("checkout complete")
	return Result{Order: o, Quote: quote, Skipped: skipped}, nil
}

// decrementStock applies every order line to the catalog. Lines that cannot
// be applied, including all of them when the catalog lock is unavailable, are
// returned as skipped.
func (s *Service) decrementStock(ctx context.Context, log zerolog.Logger, o order.Order) []SkippedLine {
	skipped := []SkippedLine{}
	skip := func(l order.Line, reason error) {
		skipped = append(skipped, SkippedLine{BookID: l.BookID, Quantity: l.Quantity, Reason: reason.Error()})
		obs.ObserveStockSkipped()
		log.Warn().Err(reason).Int("book_id", l.BookID).Int("quantity", l.Quantity).Msg("stock not decremented")
	}
	applied := false
	err := stage(ctx, "stock_decremented", func(ctx context.Context) error {
		return s.stock.Mutate(ctx, func(c *catalog.Catalog) error {
			applied = true
			for _, l := range o.Lines {
				if _, err := c.AdjustStock(l.BookID, -l.Quantity); err != nil {
					skip(l, err)
				}
			}
			return nil
		})
	})
	switch {
	case err != nil && !applied:
		for _, l := range o.Lines {
			skip(l, err)
		}
	case err != nil:
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("stock decremented but not persisted")
	}
	return skipped
}

// notify delivers in the background; the request does not wait.
func (s *Service) notify(ctx context.Context, log zerolog.Logger, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.notifier.Notify(ctx, msg); err != nil {
			log.Warn().Err(err).Str("order_id", msg.OrderID).Msg("notification failed")
		}
	}()
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "checkout."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// step is stage for work that cannot fail.
func step(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := tracer.Start(ctx, "checkout."+name)
	defer span.End()
	fn(ctx)
}

func linesOf(details []cart.LineDetail) []order.Line {
	lines := make([]order.Line, 0, len(details))
	for _, d := range details {
		lines = append(lines, order.Line{
			BookID:    d.BookID,
			Title:     d.Title,
			Author:    d.Author,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
		})
	}
	return lines
}
