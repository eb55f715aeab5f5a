package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "POST, GET, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

// APIGatewayHandler serves the webhook endpoint behind API Gateway with the
// same responses as the HTTP server.
type APIGatewayHandler struct {
	reconciler *Reconciler
	now        func() time.Time
}

func NewAPIGatewayHandler(r *Reconciler) *APIGatewayHandler {
	return &APIGatewayHandler{reconciler: r, now: time.Now}
}

func (h *APIGatewayHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodOptions:
		return respond(http.StatusNoContent, nil), nil
	case http.MethodGet:
		return respond(http.StatusOK, map[string]string{
			"status":    "webhook endpoint active",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		}), nil
	case http.MethodPost:
	default:
		return respond(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return respond(http.StatusBadRequest, map[string]string{"error": ErrMalformedPayload.Error()}), nil
		}
		body = decoded
	}

	ack, err := h.reconciler.HandleNotification(ctx, body)
	switch {
	case errors.Is(err, ErrMalformedPayload), errors.Is(err, ErrMissingPaymentID):
		return respond(http.StatusBadRequest, map[string]string{"error": err.Error()}), nil
	case err != nil:
		return respond(http.StatusInternalServerError, map[string]string{"error": "internal error"}), nil
	}
	return respond(http.StatusOK, ack), nil
}

func respond(status int, payload any) events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(corsHeaders)+1)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	resp := events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	if payload == nil {
		return resp
	}
	headers["Content-Type"] = "application/json"
	b, _ := json.Marshal(payload)
	resp.Body = string(b)
	return resp
}
