package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutAmount records the amount paid per successful checkout.
	CheckoutAmount prometheus.Histogram
	// StockSkippedTotal counts cart lines whose stock decrement was skipped.
	StockSkippedTotal prometheus.Counter
	// NotificationTotal counts order notification outcomes.
	NotificationTotal *prometheus.CounterVec
	// LoginTotal counts login attempts by outcome.
	LoginTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"})
		CheckoutAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_amount",
			Help:      "Amount paid per completed checkout.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		})
		StockSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_skipped_total",
			Help:      "Cart lines whose stock decrement was skipped during checkout.",
		})
		NotificationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_total",
			Help:      "Count of order notification outcomes.",
		}, []string{"result"})
		LoginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_total",
			Help:      "Count of login attempts by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutAmount = v
			}
		})
		mustRegisterCollector(reg, StockSkippedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				StockSkippedTotal = v
			}
		})
		mustRegisterCollector(reg, NotificationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotificationTotal = v
			}
		})
		mustRegisterCollector(reg, LoginTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LoginTotal = v
			}
		})
	})
}

// ObserveCheckout records a checkout outcome. amount is ignored unless result is "success".
func ObserveCheckout(result string, amount float64) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
	if result == "success" && CheckoutAmount != nil {
		CheckoutAmount.Observe(amount)
	}
}

// ObserveStockSkipped counts a skipped stock decrement.
func ObserveStockSkipped() {
	if StockSkippedTotal != nil {
		StockSkippedTotal.Inc()
	}
}

// ObserveNotification records a notification delivery outcome.
func ObserveNotification(result string) {
	if NotificationTotal != nil {
		NotificationTotal.WithLabelValues(result).Inc()
	}
}

// ObserveLogin records a login outcome.
func ObserveLogin(result string) {
	if LoginTotal != nil {
		LoginTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
