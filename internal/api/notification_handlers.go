package api

import (
	"errors"
	"net/http"

	"github.com/example/ec-storefront/internal/domain/notification"
)

type unreadResponse struct {
	Notifications []*notification.Notification `json:"notifications"`
	Count         int                          `json:"count"`
}

// ListNotifications serves the paginated listing, or with action=unread the
// latest unread notifications and with action=count only the unread count.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.URL.Query().Get("action") {
	case "unread":
		items, err := h.queryHandler.UnreadNotifications(ctx, queryInt(r, "limit"))
		if err != nil {
			h.notificationError(w, err, "list unread notifications")
			return
		}
		count, err := h.queryHandler.UnreadCount(ctx)
		if err != nil {
			h.notificationError(w, err, "count unread notifications")
			return
		}
		respondJSON(w, http.StatusOK, unreadResponse{Notifications: items, Count: count})

	case "count":
		count, err := h.queryHandler.UnreadCount(ctx)
		if err != nil {
			h.notificationError(w, err, "count unread notifications")
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"count": count})

	default:
		page, err := h.queryHandler.ListNotifications(ctx, queryInt(r, "page"), queryInt(r, "limit"))
		if err != nil {
			h.notificationError(w, err, "list notifications")
			return
		}
		respondJSON(w, http.StatusOK, page)
	}
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := h.cmdHandler.MarkNotificationRead(r.Context(), id); err != nil {
		h.notificationError(w, err, "mark notification read")
		return
	}
	respondSuccess(w)
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.MarkAllNotificationsRead(r.Context()); err != nil {
		h.notificationError(w, err, "mark all notifications read")
		return
	}
	respondSuccess(w)
}

func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := h.cmdHandler.DeleteNotification(r.Context(), id); err != nil {
		h.notificationError(w, err, "delete notification")
		return
	}
	respondSuccess(w)
}

func (h *Handlers) notificationError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, notification.ErrNotFound) {
		respondError(w, http.StatusNotFound, notification.ErrNotFound.Error())
		return
	}
	h.log.WithError(err).Error(op)
	respondError(w, http.StatusInternalServerError, "internal error")
}
