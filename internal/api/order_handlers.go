package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/order"
)

// Customer orders

func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.queryHandler.ListUserOrders(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "page"))
	if err != nil {
		h.log.WithError(err).Error("list user orders")
		respondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handlers) DeleteMyOrder(w http.ResponseWriter, r *http.Request) {
	h.deleteOrder(w, r, middleware.GetUserID(r.Context()))
}

// Admin orders

func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.queryHandler.ListAllOrders(r.Context(), queryInt(r, "page"))
	if err != nil {
		h.log.WithError(err).Error("list all orders")
		respondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handlers) DeleteAnyOrder(w http.ResponseWriter, r *http.Request) {
	h.deleteOrder(w, r, "")
}

func (h *Handlers) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var cmd command.UpdateShipping
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cmd.ShippingStatus == "" {
		respondError(w, http.StatusBadRequest, "shipping_status is required")
		return
	}
	cmd.OrderID = id

	if err := h.cmdHandler.UpdateShippingStatus(r.Context(), cmd); err != nil {
		h.respondOrderError(w, err, "update shipping status")
		return
	}
	respondSuccess(w)
}

func (h *Handlers) deleteOrder(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.cmdHandler.DeleteOrder(r.Context(), command.DeleteOrder{OrderID: id, UserID: ownerID}); err != nil {
		h.respondOrderError(w, err, "delete order")
		return
	}
	respondSuccess(w)
}

func (h *Handlers) respondOrderError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, order.ErrOrderNotFound.Error())
	case errors.Is(err, order.ErrOrderPaid),
		errors.Is(err, order.ErrPaymentInProgress),
		errors.Is(err, order.ErrInvalidShippingStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error(op)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
