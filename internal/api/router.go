package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
)

// NewRouter wires the storefront routes. Customer routes need a session,
// admin routes additionally need the admin role, and the webhook is open to
// any origin.
func NewRouter(h *Handlers, tokens middleware.TokenValidator, log logrus.FieldLogger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	cors := func(fn http.HandlerFunc) http.Handler { return middleware.OpenCORS(fn) }
	api.Handle("/webhooks", cors(h.ReceiveWebhook)).Methods(http.MethodPost)
	api.Handle("/webhooks", cors(h.WebhookStatus)).Methods(http.MethodGet)
	api.Handle("/webhooks", cors(http.NotFound)).Methods(http.MethodOptions)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AuthMiddleware(tokens), middleware.RequireRole(auth.RoleAdmin))
	admin.HandleFunc("/orders", h.ListAllOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id:[0-9]+}", h.UpdateShipping).Methods(http.MethodPatch)
	admin.HandleFunc("/orders/{id:[0-9]+}", h.DeleteAnyOrder).Methods(http.MethodDelete)
	admin.HandleFunc("/notifications", h.ListNotifications).Methods(http.MethodGet)
	admin.HandleFunc("/notifications/read-all", h.MarkAllNotificationsRead).Methods(http.MethodPost)
	admin.HandleFunc("/notifications/{id:[0-9]+}/read", h.MarkNotificationRead).Methods(http.MethodPost)
	admin.HandleFunc("/notifications/{id:[0-9]+}", h.DeleteNotification).Methods(http.MethodDelete)

	user := api.NewRoute().Subrouter()
	user.Use(middleware.AuthMiddleware(tokens))
	user.HandleFunc("/checkout/preference", h.CreatePreference).Methods(http.MethodPost)
	user.HandleFunc("/orders", h.ListMyOrders).Methods(http.MethodGet)
	user.HandleFunc("/orders/{id:[0-9]+}", h.DeleteMyOrder).Methods(http.MethodDelete)

	return middleware.Logging(log.WithField("component", "http"))(r)
}
