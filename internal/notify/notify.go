// Package notify delivers best-effort user notifications, either inline or
// through an asynq queue drained by cmd/worker.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/obs"
)

// OrderPlacedBody is the text sent after a successful checkout.
const OrderPlacedBody = "Your order has been placed successfully!"

// Message is a single notification addressed to a user.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	OrderID string `json:"orderId,omitempty"`
}

// Notifier delivers a message. Implementations may block for a configured delay.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// OrderPlaced builds the checkout confirmation for username.
func OrderPlaced(username, orderID string) Message {
	return Message{
		To:      username,
		Subject: "Order " + orderID + " placed",
		Body:    OrderPlacedBody,
		OrderID: orderID,
	}
}

// EmailNotifier sends messages through an EmailSender after an optional delay.
type EmailNotifier struct {
	Mail    common.EmailSender
	Enabled bool
	From    string
	Delay   time.Duration
}

// Notify implements Notifier. A disabled notifier or empty recipient is a no-op.
func (n EmailNotifier) Notify(ctx context.Context, msg Message) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil
	}
	if n.Delay > 0 {
		timer := time.NewTimer(n.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			obs.ObserveNotification("canceled")
			return ctx.Err()
		case <-timer.C:
		}
	}
	body := msg.Body
	if n.From != "" {
		body += "\n\n-- " + n.From
	}
	if err := n.Mail.Send(to, msg.Subject, body); err != nil {
		obs.ObserveNotification("error")
		return err
	}
	obs.ObserveNotification("sent")
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var joined error
	for _, n := range m {
		if n == nil {
			continue
		}
		joined = errors.Join(joined, n.Notify(ctx, msg))
	}
	return joined
}

// LogMailer is an EmailSender that writes each message to the log instead of
// delivering it.
type LogMailer struct {
	Logger zerolog.Logger
}

// Send implements common.EmailSender.
func (m LogMailer) Send(to, subject, body string) error {
	m.Logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email")
	return nil
}
