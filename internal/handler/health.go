package handler

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"licensegate/internal/httputil"
)

// HealthHandler exposes the liveness probe.
type HealthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check pings the store so a wedged database shows up in monitoring.
// GET /healthz
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		httputil.WriteInternalError(w, "Database unreachable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
