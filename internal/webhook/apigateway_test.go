package webhook

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/domain/order"
)

func newTestAPIGatewayHandler() (*APIGatewayHandler, *fakePayments, func() *order.Order) {
	r, st, payments, _ := newTestReconciler()
	h := NewAPIGatewayHandler(r)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	seeded := seedFilterOrder(st, order.StatusPending, 10)
	return h, payments, func() *order.Order {
		o, _ := st.Order(seeded.ID)
		return o
	}
}

func TestAPIGatewayHandler_Post(t *testing.T) {
	h, payments, current := newTestAPIGatewayHandler()
	payments.set("123", order.PaymentApproved, testReference)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       `{"type":"payment","data":{"id":"123"}}`,
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"received":true}`, resp.Body)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, order.StatusPaid, current().Status)
}

func TestAPIGatewayHandler_Base64Body(t *testing.T) {
	h, payments, current := newTestAPIGatewayHandler()
	payments.set("123", order.PaymentRejected, testReference)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"action":"payment.updated","data":{"id":123}}`)),
		IsBase64Encoded: true,
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, order.StatusCancelled, current().Status)
}

func TestAPIGatewayHandler_Rejections(t *testing.T) {
	h, _, _ := newTestAPIGatewayHandler()

	tests := []struct {
		name string
		req  events.APIGatewayProxyRequest
		want int
	}{
		{"malformed", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "nope"}, http.StatusBadRequest},
		{"bad base64", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "%%%", IsBase64Encoded: true}, http.StatusBadRequest},
		{"missing id", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: `{"type":"payment"}`}, http.StatusBadRequest},
		{"wrong method", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPut}, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.Handle(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPIGatewayHandler_DiagnosticsAndPreflight(t *testing.T) {
	h, _, _ := newTestAPIGatewayHandler()

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"webhook endpoint active","timestamp":"2024-05-01T10:00:00Z"}`, resp.Body)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)
	assert.Equal(t, "POST, GET, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
}
