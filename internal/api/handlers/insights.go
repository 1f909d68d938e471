package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/insight"
	"github.com/dvloznov/finsight/internal/tenant"
)

// sqlPreviewLimit caps how much of a rejected query the API echoes back.
const sqlPreviewLimit = 200

// Question length bounds for the free-text input.
const (
	minQuestionLen = 3
	maxQuestionLen = 2000
)

// InsightsHandler serves the AI question endpoints.
type InsightsHandler struct {
	svc *insight.Service
	log zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(svc *insight.Service, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{svc: svc, log: log}
}

type askRequest struct {
	TenantID int64  `json:"tenant_id"`
	UserID   int64  `json:"user_id"`
	Question string `json:"question"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

type askResponse struct {
	SQL           string                  `json:"sql"`
	Normalized    insight.NormalizedTable `json:"normalized"`
	NarrativeText string                  `json:"narrative_text"`
	ReportID      string                  `json:"report_id"`
	QueryID       string                  `json:"query_id"`
	Meta          askMeta                 `json:"meta"`
}

type askMeta struct {
	TenantID        int64  `json:"tenant_id"`
	TenantName      string `json:"tenant_name"`
	PeriodLabel     string `json:"period_label"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// Ask handles POST /api/ai/ask
func (h *InsightsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	question := strings.TrimSpace(req.Question)
	if len(question) < minQuestionLen || len(question) > maxQuestionLen {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}
	if req.UserID <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	headerTenant, ok := middleware.TenantFromContext(ctx)
	if !ok || (req.TenantID != 0 && req.TenantID != headerTenant) {
		middleware.WriteError(w, http.StatusForbidden, "TENANT_MISMATCH")
		return
	}

	tc, err := tenant.New(headerTenant, tenant.ParsePeriod(req.Start, req.End))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	res, err := h.svc.Ask(ctx, insight.AskRequest{
		Tenant:   tc,
		UserID:   req.UserID,
		Question: question,
	})
	if err != nil {
		h.writeAskError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, askResponse{
		SQL:           res.SQL,
		Normalized:    res.Normalized,
		NarrativeText: res.Narrative,
		ReportID:      res.ReportID,
		QueryID:       res.QueryID,
		Meta: askMeta{
			TenantID:        headerTenant,
			TenantName:      res.TenantName,
			PeriodLabel:     res.PeriodLabel,
			ExecutionTimeMS: res.ExecutionTimeMS,
		},
	})
}

// DailySummary handles GET /api/ai/daily-summary?date=YYYY-MM-DD
func (h *InsightsHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	headerTenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "TENANT_MISMATCH")
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}
	day, err := civil.ParseDate(dateStr)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	tc, err := tenant.New(headerTenant, nil)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	res, err := h.svc.DailySummary(ctx, tc, userID, day)
	if err != nil {
		h.writeAskError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":      res.Day.String(),
		"summary":   res.Narrative,
		"income":    res.Aggregates.Income,
		"expenses":  res.Aggregates.Expenses,
		"net":       res.Aggregates.Net,
		"breakdown": res.Breakdown,
		"report_id": res.ReportID,
		"query_id":  res.QueryID,
	})
}

// writeAskError maps pipeline failures onto HTTP statuses. A rejected
// candidate surfaces as a 400 with a short preview; infrastructure
// failures stay generic so no internals leak.
func (h *InsightsHandler) writeAskError(w http.ResponseWriter, err error) {
	var unsafeErr *insight.UnsafeQueryError
	if errors.As(err, &unsafeErr) {
		h.log.Warn().
			Str("reason", unsafeErr.Verdict.Reason.String()).
			Str("detail", unsafeErr.Verdict.Detail).
			Msg("Rejected unsafe generated query")
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":       "UNSAFE_SQL",
			"sql_preview": unsafeErr.Preview(sqlPreviewLimit),
		})
		return
	}

	if errors.Is(err, insight.ErrTenantNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Business not found")
		return
	}

	var genErr *insight.GenerationError
	if errors.As(err, &genErr) {
		h.log.Error().Err(err).Str("stage", genErr.Stage).Msg("Generation failure")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to answer question")
		return
	}

	var execErr *insight.ExecutionError
	if errors.As(err, &execErr) {
		h.log.Error().Err(err).Msg("Query execution failure")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to answer question")
		return
	}

	h.log.Error().Err(err).Msg("Unexpected failure answering question")
	middleware.WriteError(w, http.StatusInternalServerError, "Failed to answer question")
}
