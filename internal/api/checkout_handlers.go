package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/gateway"
)

type preferenceResponse struct {
	PreferenceID string `json:"preferenceId"`
	InitPoint    string `json:"initPoint,omitempty"`
}

// gatewayErrorResponse is the body of every checkout 500.
type gatewayErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (h *Handlers) CreatePreference(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var cmd command.StartCheckout
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd.UserID = claims.UserID
	cmd.BuyerEmail = claims.Email

	result, err := h.cmdHandler.StartCheckout(r.Context(), cmd)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, preferenceResponse{
			PreferenceID: result.PreferenceID,
			InitPoint:    result.InitPoint,
		})
	case errors.Is(err, command.ErrInvalidCheckout):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, command.ErrPaymentGateway):
		respondJSON(w, http.StatusInternalServerError, gatewayErrorResponse{
			Error:   "failed to create payment preference",
			Details: gatewayDetails(err),
		})
	default:
		respondJSON(w, http.StatusInternalServerError, gatewayErrorResponse{
			Error:   command.ErrPlaceOrder.Error(),
			Details: "the order could not be saved, please try again",
		})
	}
}

func gatewayDetails(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
