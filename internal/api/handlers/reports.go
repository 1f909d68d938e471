package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/api/middleware"
	bq "github.com/dvloznov/finsight/internal/bigquery"
)

const defaultReportListLimit = 20

// ReportsHandler serves persisted reports.
type ReportsHandler struct {
	repo bq.ReportRepository
	log  zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(repo bq.ReportRepository, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{repo: repo, log: log}
}

// ListReports handles GET /api/reports
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "TENANT_MISMATCH")
		return
	}

	limit := defaultReportListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	reports, err := h.repo.ListReports(ctx, tenantID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list reports")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	if reports == nil {
		reports = []*bq.ReportRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}
