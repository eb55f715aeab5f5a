package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/webhook"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	reconciler   *webhook.Reconciler
	now          func() time.Time
	log          logrus.FieldLogger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, reconciler *webhook.Reconciler, log logrus.FieldLogger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		reconciler:   reconciler,
		now:          time.Now,
		log:          log.WithField("component", "api"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondSuccess(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// pathID reads the numeric {id} route variable.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// queryInt reads a positive integer query parameter, or 0 when absent or
// malformed.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
