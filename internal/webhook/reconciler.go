// Package webhook reconciles orders against payment notifications.
package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/notification"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/gateway"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrMissingPaymentID = errors.New("no payment id found")
)

// PaymentFetcher reads the authoritative state of a payment.
type PaymentFetcher interface {
	FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// Ack is the acknowledgement returned to the processor.
type Ack struct {
	Received bool `json:"received"`
	Ignored  bool `json:"ignored,omitempty"`
}

// Outcome describes what a reconciliation did.
type Outcome struct {
	PaymentID  string
	Reference  string
	OrderID    int64
	Transition order.Transition
	Found      bool
}

type Reconciler struct {
	store     store.Store
	payments  PaymentFetcher
	publisher kafka.Publisher
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewReconciler(st store.Store, payments PaymentFetcher, publisher kafka.Publisher, log logrus.FieldLogger) *Reconciler {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &Reconciler{
		store:     st,
		payments:  payments,
		publisher: publisher,
		now:       time.Now,
		log:       log.WithField("component", "webhook"),
	}
}

// HandleNotification processes one webhook delivery. Only an unreadable body
// or a payment event without an id is rejected; everything else is
// acknowledged, including failures to reach the gateway or the store, which
// are logged.
func (r *Reconciler) HandleNotification(ctx context.Context, raw []byte) (Ack, error) {
	n, err := ParseNotification(raw)
	if err != nil {
		return Ack{}, ErrMalformedPayload
	}
	if !n.IsPayment() {
		r.log.WithFields(logrus.Fields{"type": n.Type, "action": n.Action}).Debug("ignoring non-payment notification")
		return Ack{Received: true, Ignored: true}, nil
	}

	paymentID := n.PaymentID()
	if paymentID == "" {
		return Ack{}, ErrMissingPaymentID
	}

	if _, err := r.Reconcile(ctx, paymentID); err != nil {
		r.log.WithError(err).WithField("payment_id", paymentID).Error("reconcile payment")
	}
	return Ack{Received: true}, nil
}

// Reconcile fetches the payment and applies it to the order it references.
// A payment the gateway cannot return, or one without a reference, is not an
// error: the notification is simply not actionable.
func (r *Reconciler) Reconcile(ctx context.Context, paymentID string) (*Outcome, error) {
	log := r.log.WithField("payment_id", paymentID)
	out := &Outcome{PaymentID: paymentID}

	payment, err := r.payments.FetchPayment(ctx, paymentID)
	if err != nil {
		entry := log.WithError(err)
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			entry = entry.WithFields(logrus.Fields{
				"gateway_status":  apiErr.StatusCode,
				"gateway_message": apiErr.Message,
				"retryable":       apiErr.Temporary(),
			})
		}
		entry.Warn("fetch payment failed, notification dropped")
		return out, nil
	}

	out.Reference = payment.ExternalReference
	if payment.ExternalReference == "" {
		log.WithField("status", payment.Status).Info("payment without external reference")
		return out, nil
	}
	log = log.WithFields(logrus.Fields{
		"external_reference": payment.ExternalReference,
		"payment_status":     payment.Status,
	})

	target := order.StatusForPayment(payment.Status)
	var written *order.Order

	err = r.store.InTx(ctx, func(uow store.UnitOfWork) error {
		orders := uow.Orders()
		o, err := orders.GetByExternalReferenceForUpdate(ctx, payment.ExternalReference)
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out.Found = true
		out.OrderID = o.ID

		t := order.ResolvePaymentTransition(o.Status, target)
		out.Transition = t
		if !t.Write {
			return nil
		}
		if err := orders.UpdatePaymentStatus(ctx, o.ID, t.To, paymentID); err != nil {
			return err
		}
		o.Status = t.To
		o.PaymentID = &paymentID

		if !t.Settled {
			written = o
			return nil
		}

		items, err := orders.Items(ctx, o.ID)
		if err != nil {
			return err
		}
		o.Items = items
		if adjustments := inventory.FromOrderItems(items); len(adjustments) > 0 {
			if err := uow.Inventory().DecreaseStockBulk(ctx, adjustments); err != nil {
				return err
			}
		}

		note, err := notification.NewPaymentApproved(payment.ExternalReference, paymentID, payment.TransactionAmount, payment.PayerEmail)
		if err != nil {
			return err
		}
		if err := uow.Notifications().Create(ctx, note); err != nil {
			return err
		}
		written = o
		return nil
	})
	if err != nil {
		return out, err
	}

	if !out.Found {
		log.Info("no order for external reference")
		return out, nil
	}

	log.WithFields(logrus.Fields{
		"order_id": out.OrderID,
		"from":     out.Transition.From,
		"to":       out.Transition.To,
		"settled":  out.Transition.Settled,
	}).Info("payment reconciled")

	if written != nil {
		r.publishTransition(ctx, out.Transition, written, payment)
	}
	return out, nil
}

func (r *Reconciler) publishTransition(ctx context.Context, t order.Transition, o *order.Order, payment *gateway.Payment) {
	var eventType string
	switch {
	case t.Settled:
		eventType = order.EventOrderPaid
	case t.To == order.StatusCancelled && t.From != order.StatusCancelled:
		eventType = order.EventOrderCancelled
	default:
		return
	}

	evt := order.Event{
		ID:                uuid.NewString(),
		Type:              eventType,
		OrderID:           o.ID,
		UserID:            o.UserID,
		ExternalReference: o.ExternalReference,
		PaymentID:         *o.PaymentID,
		Amount:            payment.TransactionAmount,
		PayerEmail:        payment.PayerEmail,
		Items:             o.Items,
		OccurredAt:        r.now(),
	}
	if err := r.publisher.Publish(ctx, o.ExternalReference, evt); err != nil {
		r.log.WithError(err).WithField("event", eventType).Warn("publish order event")
	}
}
