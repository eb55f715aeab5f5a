// Package notification sends emails for order events consumed from Kafka.
package notification

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/email"
)

// Mailer sends payment emails.
type Mailer interface {
	SendPaymentConfirmation(to string, receipt email.Receipt) error
	SendAdminPaymentAlert(to string, receipt email.Receipt) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer     Mailer
	adminEmail string
	log        logrus.FieldLogger
}

// NewHandler creates a new notification handler. An empty adminEmail turns
// the admin alert off.
func NewHandler(mailer Mailer, adminEmail string, log logrus.FieldLogger) *Handler {
	return &Handler{
		mailer:     mailer,
		adminEmail: adminEmail,
		log:        log.WithField("component", "notifier"),
	}
}

// HandleEvent processes an event from Kafka. Only OrderPaid produces mail.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return errors.Wrap(err, "unmarshal order event")
	}

	if event.Type != order.EventOrderPaid {
		return nil
	}
	return h.handleOrderPaid(event)
}

func (h *Handler) handleOrderPaid(e order.Event) error {
	log := h.log.WithFields(logrus.Fields{
		"order_id":           e.OrderID,
		"external_reference": e.ExternalReference,
		"payment_id":         e.PaymentID,
	})

	receipt := email.Receipt{
		OrderID:    e.OrderID,
		Reference:  e.ExternalReference,
		PaymentID:  e.PaymentID,
		Amount:     e.Amount,
		PayerEmail: e.PayerEmail,
		Items:      make([]email.OrderItem, len(e.Items)),
	}
	for i, item := range e.Items {
		receipt.Items[i] = email.OrderItem{Title: item.Title, Quantity: item.Quantity, Price: item.Price}
	}

	var firstErr error
	if h.adminEmail != "" {
		if err := h.mailer.SendAdminPaymentAlert(h.adminEmail, receipt); err != nil {
			log.WithError(err).Error("send admin payment alert")
			firstErr = err
		} else {
			log.Info("admin payment alert sent")
		}
	}

	if e.PayerEmail == "" {
		log.Debug("no payer email, skipping confirmation")
		return firstErr
	}
	if err := h.mailer.SendPaymentConfirmation(e.PayerEmail, receipt); err != nil {
		log.WithError(err).Error("send payment confirmation")
		if firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	log.WithField("to", e.PayerEmail).Info("payment confirmation sent")
	return firstErr
}
