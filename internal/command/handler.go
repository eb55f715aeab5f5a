package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/gateway"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

var (
	ErrInvalidCheckout = errors.New("invalid checkout request")
	ErrPlaceOrder      = errors.New("failed to place order")
	ErrPaymentGateway  = errors.New("payment gateway error")
)

// maxReferenceAttempts bounds retries after an external reference collision.
const maxReferenceAttempts = 3

// PreferenceCreator opens hosted-checkout sessions.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error)
}

// CheckoutSettings are the deployment values a preference is built from.
type CheckoutSettings struct {
	Currency        string
	PublicSiteURL   string
	NotificationURL string
}

type Handler struct {
	store     store.Store
	gateway   PreferenceCreator
	publisher kafka.Publisher
	validate  *validator.Validate
	settings  CheckoutSettings
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewHandler(
	st store.Store,
	gw PreferenceCreator,
	publisher kafka.Publisher,
	settings CheckoutSettings,
	log logrus.FieldLogger,
) *Handler {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &Handler{
		store:     st,
		gateway:   gw,
		publisher: publisher,
		validate:  newValidator(),
		settings:  settings,
		now:       time.Now,
		log:       log.WithField("component", "checkout"),
	}
}

// StartCheckout persists the caller's pending order and opens a payment
// session for it.
//
// A pending order without a payment attempt is rewritten in place with a new
// external reference, so repeated checkouts never pile up pending orders. Once
// the gateway recorded a payment attempt the order is left alone and a new one
// is created.
func (h *Handler) StartCheckout(ctx context.Context, cmd StartCheckout) (*CheckoutResult, error) {
	if err := h.validateCheckout(cmd); err != nil {
		return nil, err
	}

	log := h.log.WithField("user_id", cmd.UserID)

	var (
		o      *order.Order
		reused bool
		err    error
	)
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		o, reused, err = h.placeOrder(ctx, cmd)
		if !errors.Is(err, order.ErrDuplicateExternalReference) {
			break
		}
		log.WithField("attempt", attempt).Warn("external reference collision, minting a new one")
	}
	if err != nil {
		log.WithError(err).Error("place order")
		return nil, ErrPlaceOrder
	}

	log = log.WithFields(logrus.Fields{
		"order_id":           o.ID,
		"external_reference": o.ExternalReference,
		"reused":             reused,
	})
	log.Info("order placed")
	h.publish(ctx, order.EventOrderPlaced, o, "", "")

	pref, err := h.gateway.CreatePreference(ctx, h.preferenceRequest(o, cmd.BuyerEmail))
	if err != nil {
		entry := log.WithError(err)
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			entry = entry.WithFields(logrus.Fields{
				"gateway_status":  apiErr.StatusCode,
				"gateway_message": apiErr.Message,
				"gateway_code":    apiErr.Code,
				"retryable":       apiErr.Temporary(),
			})
		}
		entry.Error("create preference")
		return nil, fmt.Errorf("%w: %w", ErrPaymentGateway, err)
	}

	// The reference is what reconciliation keys on, so a failed write here
	// does not invalidate the session.
	err = h.store.Orders().SetPreferenceID(ctx, o.ID, o.ExternalReference, pref.ID)
	switch {
	case errors.Is(err, order.ErrStaleExternalReference):
		log.Info("order re-minted by a newer checkout, preference id not stored")
	case err != nil:
		log.WithError(err).Warn("store preference id")
	}

	return &CheckoutResult{
		OrderID:           o.ID,
		PreferenceID:      pref.ID,
		InitPoint:         pref.InitPoint,
		ExternalReference: o.ExternalReference,
		Reused:            reused,
	}, nil
}

// placeOrder runs one reuse-or-create attempt in a single transaction.
func (h *Handler) placeOrder(ctx context.Context, cmd StartCheckout) (*order.Order, bool, error) {
	var (
		placed *order.Order
		reused bool
	)
	err := h.store.InTx(ctx, func(uow store.UnitOfWork) error {
		orders := uow.Orders()
		if err := orders.LockUser(ctx, cmd.UserID); err != nil {
			return err
		}

		existing, err := orders.LatestPendingForUpdate(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		ref := order.NewExternalReference(cmd.UserID, h.now())
		items := cmd.orderItems()

		if existing != nil && existing.Reusable() {
			cmd.applyTo(existing)
			if err := existing.Rereference(ref); err != nil {
				return err
			}
			if err := orders.UpdatePending(ctx, existing); err != nil {
				return err
			}
			placed, reused = existing, true
		} else {
			placed = &order.Order{UserID: cmd.UserID, Status: order.StatusPending, ExternalReference: ref}
			cmd.applyTo(placed)
			if err := orders.Create(ctx, placed); err != nil {
				return err
			}
		}

		if err := orders.ReplaceItems(ctx, placed.ID, items); err != nil {
			return err
		}
		placed.Items = items
		return nil
	})
	return placed, reused, err
}

func (cmd StartCheckout) applyTo(o *order.Order) {
	o.TotalAmount = cmd.Total.Round(2)
	o.ShippingAddress = cmd.ShippingAddress
	o.Phone = cmd.Phone
	o.Comments = cmd.Comments
	o.ShippingType = cmd.ShippingType
	o.ShippingCost = cmd.ShippingCost
}

func (cmd StartCheckout) orderItems() []order.Item {
	items := make([]order.Item, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = order.Item{
			ProductID: item.ProductID,
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}
	return items
}

// DeleteOrder removes an order that never saw a payment attempt.
func (h *Handler) DeleteOrder(ctx context.Context, cmd DeleteOrder) error {
	return h.store.InTx(ctx, func(uow store.UnitOfWork) error {
		o, err := uow.Orders().GetForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if cmd.UserID != "" && o.UserID != cmd.UserID {
			return order.ErrOrderNotFound
		}
		if err := o.CanDelete(); err != nil {
			return err
		}
		if err := uow.Orders().Delete(ctx, o.ID); err != nil {
			return err
		}
		h.log.WithFields(logrus.Fields{"order_id": o.ID, "user_id": o.UserID}).Info("order deleted")
		return nil
	})
}

// UpdateShippingStatus sets fulfilment progress. The tracking number is only
// overwritten when one is supplied.
func (h *Handler) UpdateShippingStatus(ctx context.Context, cmd UpdateShipping) error {
	status, err := order.ParseShippingStatus(cmd.ShippingStatus)
	if err != nil {
		return err
	}
	tracking := cmd.TrackingNumber
	if tracking != nil && *tracking == "" {
		tracking = nil
	}
	return h.store.Orders().UpdateShipping(ctx, cmd.OrderID, status, tracking)
}

// Notification commands

func (h *Handler) MarkNotificationRead(ctx context.Context, id int64) error {
	return h.store.Notifications().MarkRead(ctx, id)
}

func (h *Handler) MarkAllNotificationsRead(ctx context.Context) error {
	return h.store.Notifications().MarkAllRead(ctx)
}

func (h *Handler) DeleteNotification(ctx context.Context, id int64) error {
	return h.store.Notifications().Delete(ctx, id)
}

func (h *Handler) publish(ctx context.Context, eventType string, o *order.Order, paymentID, payerEmail string) {
	evt := order.Event{
		ID:                uuid.NewString(),
		Type:              eventType,
		OrderID:           o.ID,
		UserID:            o.UserID,
		ExternalReference: o.ExternalReference,
		PaymentID:         paymentID,
		Amount:            o.TotalAmount,
		PayerEmail:        payerEmail,
		Items:             o.Items,
		OccurredAt:        h.now(),
	}
	if err := h.publisher.Publish(ctx, o.ExternalReference, evt); err != nil {
		h.log.WithError(err).WithField("event", eventType).Warn("publish order event")
	}
}
