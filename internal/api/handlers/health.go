package handlers

import (
	"net/http"

	"github.com/dvloznov/finsight/internal/api/middleware"
)

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
