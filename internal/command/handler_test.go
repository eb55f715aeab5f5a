package command

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/domain/notification"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/gateway"
	kafkamocks "github.com/example/ec-storefront/internal/infrastructure/kafka/mocks"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.PreferenceRequest
	err      error
	// before runs ahead of each call, outside the lock.
	before func(req gateway.PreferenceRequest)
}

func (g *fakeGateway) CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error) {
	if g.before != nil {
		g.before(req)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Preference{ID: "pref-" + req.ExternalReference, InitPoint: "https://pay.example/" + req.ExternalReference}, nil
}

func (g *fakeGateway) last() gateway.PreferenceRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

var testSettings = CheckoutSettings{
	Currency:        "ARS",
	PublicSiteURL:   "https://shop.example.com",
	NotificationURL: "https://shop.example.com/api/webhooks",
}

func newTestHandler() (*Handler, *mocks.MemoryStore, *fakeGateway, *kafkamocks.MockPublisher) {
	st := mocks.NewMemoryStore()
	gw := &fakeGateway{}
	pub := kafkamocks.NewMockPublisher()
	log, _ := test.NewNullLogger()
	return NewHandler(st, gw, pub, testSettings, log), st, gw, pub
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }

func filterCheckout(userID string) StartCheckout {
	return StartCheckout{
		UserID:     userID,
		BuyerEmail: "buyer@example.com",
		Items: []CheckoutItem{
			{ProductID: int64Ptr(7), Title: "Filter", Price: decimal.NewFromInt(1500), Quantity: 2},
		},
		Total:           decimal.NewFromInt(3300),
		ShippingAddress: "Santa Fe 687, Mendoza",
		ShippingType:    order.ShippingDelivery,
		ShippingCost:    decimal.NewFromInt(300),
	}
}

// ============================================
// StartCheckout Tests
// ============================================

func TestHandler_StartCheckout_CreatesOrderAndPreference(t *testing.T) {
	handler, st, gw, pub := newTestHandler()
	ctx := context.Background()

	res, err := handler.StartCheckout(ctx, filterCheckout("u1"))

	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Equal(t, "pref-"+res.ExternalReference, res.PreferenceID)
	assert.Regexp(t, `^ORDER_u1_\d+_[0-9a-f]{8}$`, res.ExternalReference)

	o, ok := st.Order(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(3300).Equal(o.TotalAmount))
	assert.Equal(t, order.ShippingProcessing, o.ShippingStatus)
	require.NotNil(t, o.PreferenceID)
	assert.Equal(t, res.PreferenceID, *o.PreferenceID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)

	assert.Equal(t, []string{"u1"}, st.LockUserCalls)
	require.Len(t, gw.requests, 1)
	require.Len(t, pub.PublishCalls, 1)
	assert.Equal(t, res.ExternalReference, pub.PublishCalls[0].Key)
	assert.Equal(t, order.EventOrderPlaced, pub.PublishCalls[0].Event.(order.Event).Type)
}

func TestHandler_StartCheckout_PreferenceLines(t *testing.T) {
	handler, _, gw, _ := newTestHandler()

	res, err := handler.StartCheckout(context.Background(), filterCheckout("u1"))
	require.NoError(t, err)

	req := gw.last()
	require.Len(t, req.Items, 2)

	assert.Equal(t, "7", req.Items[0].ID)
	assert.Equal(t, "Filter", req.Items[0].Title)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(1500).Equal(req.Items[0].UnitPrice))
	assert.Equal(t, "ARS", req.Items[0].CurrencyID)

	assert.Equal(t, "shipping", req.Items[1].ID)
	assert.Equal(t, "Envío", req.Items[1].Title)
	assert.Equal(t, 1, req.Items[1].Quantity)
	assert.True(t, decimal.NewFromInt(300).Equal(req.Items[1].UnitPrice))

	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, decimal.NewFromInt(3300).Equal(total))

	assert.Equal(t, res.ExternalReference, req.ExternalReference)
	require.NotNil(t, req.Payer)
	assert.Equal(t, "buyer@example.com", req.Payer.Email)
	assert.Equal(t, "https://shop.example.com/profile?payment=success", req.BackURLs.Success)
	assert.Equal(t, "https://shop.example.com/profile?payment=failure", req.BackURLs.Failure)
	assert.Equal(t, "https://shop.example.com/profile?payment=pending", req.BackURLs.Pending)
	assert.Equal(t, "approved", req.AutoReturn)
	assert.Equal(t, "https://shop.example.com/api/webhooks", req.NotificationURL)
}

func TestHandler_StartCheckout_PickupHasNoShippingLine(t *testing.T) {
	handler, _, gw, _ := newTestHandler()
	cmd := filterCheckout("u1")
	cmd.ShippingType = order.ShippingPickup
	cmd.ShippingCost = decimal.Zero
	cmd.ShippingAddress = ""
	cmd.Total = decimal.NewFromInt(3000)
	cmd.BuyerEmail = ""

	_, err := handler.StartCheckout(context.Background(), cmd)
	require.NoError(t, err)

	req := gw.last()
	assert.Len(t, req.Items, 1)
	assert.Nil(t, req.Payer)
}

func TestHandler_StartCheckout_ReusesPendingOrder(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	ctx := context.Background()

	first, err := handler.StartCheckout(ctx, filterCheckout("u1"))
	require.NoError(t, err)

	second := filterCheckout("u1")
	second.Items = []CheckoutItem{
		{ProductID: int64Ptr(8), Title: "Pump", Price: decimal.NewFromInt(1000), Quantity: 1},
	}
	second.Total = decimal.NewFromInt(1300)
	res, err := handler.StartCheckout(ctx, second)
	require.NoError(t, err)

	assert.True(t, res.Reused)
	assert.Equal(t, first.OrderID, res.OrderID)
	assert.NotEqual(t, first.ExternalReference, res.ExternalReference)
	assert.Len(t, st.AllOrders(), 1)

	o, _ := st.Order(res.OrderID)
	assert.Equal(t, res.ExternalReference, o.ExternalReference)
	assert.True(t, decimal.NewFromInt(1300).Equal(o.TotalAmount))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Pump", o.Items[0].Title)
}

func TestHandler_StartCheckout_RepeatedIdenticalCheckouts(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		res, err := handler.StartCheckout(ctx, filterCheckout("u1"))
		require.NoError(t, err)
		ids = append(ids, res.OrderID)
	}

	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])

	orders := st.AllOrders()
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 1)
}

func TestHandler_StartCheckout_NewOrderAfterPaymentAttempt(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	ctx := context.Background()

	prior := st.PutOrder(&order.Order{
		UserID:            "u1",
		Status:            order.StatusPending,
		TotalAmount:       decimal.NewFromInt(3300),
		ShippingType:      order.ShippingDelivery,
		ExternalReference: "ORDER_u1_1_deadbeef",
		PaymentID:         strPtr("pay-1"),
	})

	res, err := handler.StartCheckout(ctx, filterCheckout("u1"))
	require.NoError(t, err)

	assert.False(t, res.Reused)
	assert.NotEqual(t, prior.ID, res.OrderID)

	untouched, _ := st.Order(prior.ID)
	assert.Equal(t, "ORDER_u1_1_deadbeef", untouched.ExternalReference)
	assert.Equal(t, "pay-1", *untouched.PaymentID)
	assert.Len(t, st.AllOrders(), 2)
}

func TestHandler_StartCheckout_OtherUsersOrdersUntouched(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	ctx := context.Background()

	a, err := handler.StartCheckout(ctx, filterCheckout("u1"))
	require.NoError(t, err)
	b, err := handler.StartCheckout(ctx, filterCheckout("u2"))
	require.NoError(t, err)

	assert.NotEqual(t, a.OrderID, b.OrderID)
	assert.Len(t, st.AllOrders(), 2)
}

func TestHandler_StartCheckout_GatewayFailureKeepsPendingOrder(t *testing.T) {
	handler, st, gw, _ := newTestHandler()
	ctx := context.Background()
	gw.err = &gateway.APIError{Op: "create preference", StatusCode: http.StatusInternalServerError, Message: "boom"}

	_, err := handler.StartCheckout(ctx, filterCheckout("u1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentGateway)
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "boom", apiErr.Message)

	orders := st.AllOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, order.StatusPending, orders[0].Status)
	assert.Nil(t, orders[0].PreferenceID)

	// A retry lands on the reuse path.
	gw.err = nil
	res, err := handler.StartCheckout(ctx, filterCheckout("u1"))
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, orders[0].ID, res.OrderID)
	assert.Len(t, st.AllOrders(), 1)
}

func TestHandler_StartCheckout_RetriesReferenceCollision(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	collisions := 0
	st.CreateCallback = func(o *order.Order) error {
		if collisions < 2 {
			collisions++
			return order.ErrDuplicateExternalReference
		}
		return nil
	}

	res, err := handler.StartCheckout(context.Background(), filterCheckout("u1"))

	require.NoError(t, err)
	assert.NotZero(t, res.OrderID)
	assert.Equal(t, 3, st.TxCount)
	assert.Equal(t, 2, st.Rollbacks)
}

func TestHandler_StartCheckout_GivesUpAfterRepeatedCollisions(t *testing.T) {
	handler, st, gw, _ := newTestHandler()
	st.CreateCallback = func(*order.Order) error { return order.ErrDuplicateExternalReference }

	_, err := handler.StartCheckout(context.Background(), filterCheckout("u1"))

	assert.ErrorIs(t, err, ErrPlaceOrder)
	assert.Equal(t, maxReferenceAttempts, st.TxCount)
	assert.Empty(t, gw.requests)
}

func TestHandler_StartCheckout_StorageFailureRollsBack(t *testing.T) {
	handler, st, gw, pub := newTestHandler()
	st.Errs["Orders.ReplaceItems"] = errors.New("connection reset")

	_, err := handler.StartCheckout(context.Background(), filterCheckout("u1"))

	assert.ErrorIs(t, err, ErrPlaceOrder)
	assert.Empty(t, st.AllOrders())
	assert.Empty(t, gw.requests)
	assert.Empty(t, pub.PublishCalls)
}

func TestHandler_StartCheckout_FloatingPointTotal(t *testing.T) {
	handler, st, gw, _ := newTestHandler()
	cmd := filterCheckout("u1")
	cmd.Items = []CheckoutItem{
		{ProductID: int64Ptr(3), Title: "Pump", Price: decimal.RequireFromString("1234.56"), Quantity: 3},
	}
	cmd.ShippingType = order.ShippingPickup
	cmd.ShippingCost = decimal.Zero
	cmd.Total = decimal.RequireFromString("3703.6800000000003")

	res, err := handler.StartCheckout(context.Background(), cmd)

	require.NoError(t, err)
	o, ok := st.Order(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, "3703.68", o.TotalAmount.String())
	assert.Len(t, gw.requests, 1)
}

func TestHandler_StartCheckout_TotalOffByACent(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	cmd := filterCheckout("u1")
	cmd.Total = decimal.RequireFromString("3300.01")

	_, err := handler.StartCheckout(context.Background(), cmd)

	assert.ErrorIs(t, err, ErrInvalidCheckout)
	assert.Empty(t, st.AllOrders())
}

func TestHandler_StartCheckout_StalePreferenceNotStored(t *testing.T) {
	handler, st, gw, _ := newTestHandler()
	ctx := context.Background()

	var newer *CheckoutResult
	gw.before = func(req gateway.PreferenceRequest) {
		if newer != nil {
			return
		}
		// A second checkout re-mints the order while the first is still
		// waiting on the gateway.
		newer = &CheckoutResult{}
		res, err := handler.StartCheckout(ctx, filterCheckout("u1"))
		require.NoError(t, err)
		newer = res
	}

	older, err := handler.StartCheckout(ctx, filterCheckout("u1"))

	require.NoError(t, err)
	require.True(t, newer.Reused)
	assert.Equal(t, older.OrderID, newer.OrderID)
	assert.NotEqual(t, older.ExternalReference, newer.ExternalReference)

	o, ok := st.Order(older.OrderID)
	require.True(t, ok)
	assert.Equal(t, newer.ExternalReference, o.ExternalReference)
	require.NotNil(t, o.PreferenceID)
	assert.Equal(t, "pref-"+newer.ExternalReference, *o.PreferenceID)
}

func TestHandler_StartCheckout_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StartCheckout)
	}{
		{name: "no items", mutate: func(c *StartCheckout) { c.Items = nil }},
		{name: "zero quantity", mutate: func(c *StartCheckout) { c.Items[0].Quantity = 0 }},
		{name: "negative price", mutate: func(c *StartCheckout) { c.Items[0].Price = decimal.NewFromInt(-1) }},
		{name: "missing product", mutate: func(c *StartCheckout) { c.Items[0].ProductID = nil }},
		{name: "unknown shipping type", mutate: func(c *StartCheckout) { c.ShippingType = "drone" }},
		{name: "delivery without address", mutate: func(c *StartCheckout) { c.ShippingAddress = "" }},
		{name: "negative shipping cost", mutate: func(c *StartCheckout) { c.ShippingCost = decimal.NewFromInt(-5) }},
		{name: "total mismatch", mutate: func(c *StartCheckout) { c.Total = decimal.NewFromInt(3000) }},
		{name: "pickup with shipping cost", mutate: func(c *StartCheckout) { c.ShippingType = order.ShippingPickup }},
		{name: "missing user", mutate: func(c *StartCheckout) { c.UserID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, st, gw, _ := newTestHandler()
			cmd := filterCheckout("u1")
			tt.mutate(&cmd)

			_, err := handler.StartCheckout(context.Background(), cmd)

			assert.ErrorIs(t, err, ErrInvalidCheckout)
			assert.Empty(t, st.AllOrders())
			assert.Empty(t, gw.requests)
		})
	}
}

// ============================================
// DeleteOrder Tests
// ============================================

func TestHandler_DeleteOrder_Guard(t *testing.T) {
	tests := []struct {
		name      string
		status    order.Status
		paymentID *string
		wantErr   error
	}{
		{name: "pending without payment", status: order.StatusPending},
		{name: "cancelled without payment", status: order.StatusCancelled},
		{name: "paid", status: order.StatusPaid, paymentID: strPtr("p1"), wantErr: order.ErrOrderPaid},
		{name: "refunded", status: order.StatusRefunded, wantErr: order.ErrOrderPaid},
		{name: "pending with payment attempt", status: order.StatusPending, paymentID: strPtr("p1"), wantErr: order.ErrPaymentInProgress},
		{name: "cancelled with payment attempt", status: order.StatusCancelled, paymentID: strPtr("p1"), wantErr: order.ErrPaymentInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, st, _, _ := newTestHandler()
			o := st.PutOrder(&order.Order{
				UserID:            "u1",
				Status:            tt.status,
				PaymentID:         tt.paymentID,
				ExternalReference: "ORDER_u1_1_00000000",
			})

			err := handler.DeleteOrder(context.Background(), DeleteOrder{OrderID: o.ID, UserID: "u1"})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, ok := st.Order(o.ID)
				assert.True(t, ok)
				return
			}
			require.NoError(t, err)
			_, ok := st.Order(o.ID)
			assert.False(t, ok)
		})
	}
}

func TestHandler_DeleteOrder_OtherUsersOrder(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	o := st.PutOrder(&order.Order{UserID: "u1", Status: order.StatusPending, ExternalReference: "ORDER_u1_1_00000000"})

	err := handler.DeleteOrder(context.Background(), DeleteOrder{OrderID: o.ID, UserID: "u2"})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	err = handler.DeleteOrder(context.Background(), DeleteOrder{OrderID: o.ID})
	assert.NoError(t, err)
}

func TestHandler_DeleteOrder_NotFound(t *testing.T) {
	handler, _, _, _ := newTestHandler()

	err := handler.DeleteOrder(context.Background(), DeleteOrder{OrderID: 42})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

// ============================================
// UpdateShippingStatus Tests
// ============================================

func TestHandler_UpdateShippingStatus(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	ctx := context.Background()
	o := st.PutOrder(&order.Order{UserID: "u1", Status: order.StatusPaid, ExternalReference: "ORDER_u1_1_00000000"})

	err := handler.UpdateShippingStatus(ctx, UpdateShipping{OrderID: o.ID, ShippingStatus: "shipped", TrackingNumber: strPtr("TRK1")})
	require.NoError(t, err)

	err = handler.UpdateShippingStatus(ctx, UpdateShipping{OrderID: o.ID, ShippingStatus: "delivered"})
	require.NoError(t, err)

	got, _ := st.Order(o.ID)
	assert.Equal(t, order.ShippingDelivered, got.ShippingStatus)
	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, "TRK1", *got.TrackingNumber)
}

func TestHandler_UpdateShippingStatus_Invalid(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	o := st.PutOrder(&order.Order{UserID: "u1", Status: order.StatusPaid, ExternalReference: "ORDER_u1_1_00000000"})

	err := handler.UpdateShippingStatus(context.Background(), UpdateShipping{OrderID: o.ID, ShippingStatus: "lost"})
	assert.ErrorIs(t, err, order.ErrInvalidShippingStatus)

	err = handler.UpdateShippingStatus(context.Background(), UpdateShipping{OrderID: 99, ShippingStatus: "shipped"})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

// ============================================
// Notification Command Tests
// ============================================

func TestHandler_NotificationCommands(t *testing.T) {
	handler, st, _, _ := newTestHandler()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := notification.NewPaymentApproved("ORDER_u1_1_00000000", "p1", decimal.NewFromInt(10), "")
		require.NoError(t, err)
		require.NoError(t, st.Notifications().Create(ctx, n))
	}
	all := st.AllNotifications()

	require.NoError(t, handler.MarkNotificationRead(ctx, all[0].ID))
	count, err := st.Notifications().UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, handler.DeleteNotification(ctx, all[1].ID))
	assert.ErrorIs(t, handler.DeleteNotification(ctx, all[1].ID), notification.ErrNotFound)

	require.NoError(t, handler.MarkAllNotificationsRead(ctx))
	count, err = st.Notifications().UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, st.AllNotifications(), 2)
}
