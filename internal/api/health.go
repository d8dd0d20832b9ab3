package api

import (
	"net/http"
	"time"

	respond "github.com/crossedpaths/crossedpaths/server/internal/api/respond"
)

// HealthFunc reports overall health and the names of failing components.
type HealthFunc func() (healthy bool, down []string)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	check HealthFunc
}

// NewHealthHandler creates a new health handler. A nil check reports healthy.
func NewHealthHandler(check HealthFunc) *HealthHandler {
	if check == nil {
		check = func() (bool, []string) { return true, nil }
	}
	return &HealthHandler{check: check}
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ok, down := h.check()
	status := "unhealthy"
	if ok {
		status = "healthy"
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if len(down) > 0 {
		response["down"] = down
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
