package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/audit"
	bq "github.com/dvloznov/finsight/internal/bigquery"
	"github.com/dvloznov/finsight/internal/tenant"
)

// QueryRunner executes one guard-accepted statement on the read-only
// path and returns the raw rows.
type QueryRunner interface {
	RunQuery(ctx context.Context, sql string) ([]Row, error)
}

// AuditSink receives audit records without ever blocking the request.
type AuditSink interface {
	Submit(rec audit.Record) bool
}

// Service runs the question pipeline: classify, generate, guard,
// execute, normalize, extract, narrate, record.
type Service struct {
	generator  *SQLGenerator
	narrator   *Narrator
	runner     QueryRunner
	businesses bq.BusinessRepository
	stats      bq.TransactionStatsRepository
	audit      AuditSink

	modelName  string
	llmTimeout time.Duration
	log        zerolog.Logger
}

// Deps are the capabilities a Service needs. All of them are created at
// process start and shared read-only.
type Deps struct {
	LLM        TextGenerator
	Runner     QueryRunner
	Businesses bq.BusinessRepository
	Stats      bq.TransactionStatsRepository
	Audit      AuditSink
	ModelName  string
	LLMTimeout time.Duration
	Log        zerolog.Logger
}

func NewService(d Deps) *Service {
	timeout := d.LLMTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		generator:  NewSQLGenerator(d.LLM),
		narrator:   NewNarrator(d.LLM),
		runner:     d.Runner,
		businesses: d.Businesses,
		stats:      d.Stats,
		audit:      d.Audit,
		modelName:  d.ModelName,
		llmTimeout: timeout,
		log:        d.Log,
	}
}

// AskRequest is one natural-language question scoped to a tenant.
type AskRequest struct {
	Tenant   tenant.Context
	UserID   int64
	Question string
}

// AskResult is the assembled answer for a successful request.
type AskResult struct {
	SQL        string
	Normalized NormalizedTable
	Narrative  string
	ReportID   string
	QueryID    string

	TenantName      string
	PeriodLabel     string
	ExecutionTimeMS int64
}

// Ask answers one question, or refuses. Audit records are submitted for
// accepted and rejected candidates alike; their persistence never gates
// the response.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	start := time.Now()

	business, err := s.businesses.GetBusiness(ctx, req.Tenant.TenantID)
	if err != nil {
		return nil, fmt.Errorf("ask: resolving business: %w", err)
	}
	if business == nil {
		return nil, ErrTenantNotFound
	}

	intent := ClassifyIntent(req.Question)
	s.log.Debug().
		Int64("business_id", req.Tenant.TenantID).
		Str("intent", intent.String()).
		Msg("Classified question")

	genCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	sql, err := s.generator.Generate(genCtx, req.Question, req.Tenant, intent)
	cancel()
	if err != nil {
		s.recordError(req, "", start, err.Error())
		return nil, err
	}

	verdict := InspectQuery(sql, req.Tenant.TenantID)
	if !verdict.Accepted {
		s.recordRejection(req, sql, start, verdict)
		return nil, &UnsafeQueryError{SQL: sql, Verdict: verdict}
	}

	rows, err := s.runner.RunQuery(ctx, sql)
	if err != nil {
		s.recordError(req, sql, start, err.Error())
		return nil, &ExecutionError{Err: err}
	}

	table := Normalize(rows)
	aggregates := ExtractAggregates(table, req.Question)

	narCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	narrative, err := s.narrator.Narrate(narCtx, NarrativeInput{
		BusinessName: business.Name,
		PeriodLabel:  req.Tenant.PeriodLabel(),
		Question:     req.Question,
		Aggregates:   aggregates,
		Sample:       table.Summary.TopRows,
		Currency:     currencyLabel(business),
	})
	cancel()
	if err != nil {
		s.recordError(req, sql, start, err.Error())
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	queryID := uuid.NewString()
	reportID := uuid.NewString()

	result := &AskResult{
		SQL:             sql,
		Normalized:      table,
		Narrative:       narrative,
		ReportID:        reportID,
		QueryID:         queryID,
		TenantName:      business.Name,
		PeriodLabel:     req.Tenant.PeriodLabel(),
		ExecutionTimeMS: elapsed,
	}

	content, _ := json.Marshal(map[string]interface{}{
		"sql":            sql,
		"normalized":     table,
		"narrative_text": narrative,
		"meta": map[string]interface{}{
			"business_id":   req.Tenant.TenantID,
			"business_name": business.Name,
			"period":        req.Tenant.PeriodLabel(),
			"created_at":    time.Now().UTC().Format(time.RFC3339),
		},
	})

	s.audit.Submit(audit.Record{
		Log: &bq.QueryLogRow{
			QueryID:         queryID,
			UserID:          req.UserID,
			BusinessID:      req.Tenant.TenantID,
			NaturalQuery:    req.Question,
			ActionType:      bq.ActionSQLSelect,
			GeneratedSQL:    bigquery.NullString{StringVal: sql, Valid: true},
			Status:          bq.StatusSuccess,
			ModelUsed:       s.modelName,
			ExecutionTimeMS: elapsed,
			ExecutedAt:      time.Now().UTC(),
		},
		Report: &bq.ReportRow{
			ReportID:    reportID,
			UserID:      req.UserID,
			BusinessID:  req.Tenant.TenantID,
			QueryID:     queryID,
			Title:       "Query result - " + req.Tenant.PeriodLabel(),
			ReportType:  bq.ReportCustom,
			PeriodStart: nullDate(periodStart(req.Tenant.Period)),
			PeriodEnd:   nullDate(periodEnd(req.Tenant.Period)),
			Content:     string(content),
			CreatedTS:   time.Now().UTC(),
		},
		Content: content,
	})

	return result, nil
}

// DailySummaryResult is the answer to a fixed-shape daily summary
// request. The figures come from a parameterized aggregate query, not
// from the model; only the narrative involves the model at all.
type DailySummaryResult struct {
	Day        civil.Date
	Aggregates AggregateSummary
	Breakdown  []*bq.DailyBreakdownRow
	Narrative  string
	ReportID   string
	QueryID    string
}

// DailySummary summarizes one day's transactions for a tenant. The
// aggregates are computed server-side; a missing transaction type means
// that figure is absent, never zero.
func (s *Service) DailySummary(ctx context.Context, tc tenant.Context, userID int64, day civil.Date) (*DailySummaryResult, error) {
	start := time.Now()

	business, err := s.businesses.GetBusiness(ctx, tc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("daily summary: resolving business: %w", err)
	}
	if business == nil {
		return nil, ErrTenantNotFound
	}

	rows, err := s.stats.DailyBreakdown(ctx, tc.TenantID, day)
	if err != nil {
		s.recordSummaryError(tc, userID, day, start, err.Error())
		return nil, &ExecutionError{Err: err}
	}

	aggregates := aggregateBreakdown(rows)

	narCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	narrative, err := s.narrator.Narrate(narCtx, NarrativeInput{
		BusinessName: business.Name,
		PeriodLabel:  day.String(),
		Question:     "Summarize this day's financial activity.",
		Aggregates:   aggregates,
		Currency:     currencyLabel(business),
	})
	cancel()
	if err != nil {
		s.recordSummaryError(tc, userID, day, start, err.Error())
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	queryID := uuid.NewString()
	reportID := uuid.NewString()

	content, _ := json.Marshal(map[string]interface{}{
		"day":            day.String(),
		"breakdown":      rows,
		"narrative_text": narrative,
		"meta": map[string]interface{}{
			"business_id":   tc.TenantID,
			"business_name": business.Name,
			"created_at":    time.Now().UTC().Format(time.RFC3339),
		},
	})

	s.audit.Submit(audit.Record{
		Log: &bq.QueryLogRow{
			QueryID:         queryID,
			UserID:          userID,
			BusinessID:      tc.TenantID,
			NaturalQuery:    "daily summary " + day.String(),
			ActionType:      bq.ActionSummary,
			Status:          bq.StatusSuccess,
			ModelUsed:       s.modelName,
			ExecutionTimeMS: elapsed,
			ExecutedAt:      time.Now().UTC(),
		},
		Report: &bq.ReportRow{
			ReportID:    reportID,
			UserID:      userID,
			BusinessID:  tc.TenantID,
			QueryID:     queryID,
			Title:       "Daily summary - " + day.String(),
			ReportType:  bq.ReportSummary,
			PeriodStart: bigquery.NullDate{Date: day, Valid: true},
			PeriodEnd:   bigquery.NullDate{Date: day, Valid: true},
			Content:     string(content),
			CreatedTS:   time.Now().UTC(),
		},
		Content: content,
	})

	return &DailySummaryResult{
		Day:        day,
		Aggregates: aggregates,
		Breakdown:  rows,
		Narrative:  narrative,
		ReportID:   reportID,
		QueryID:    queryID,
	}, nil
}

// aggregateBreakdown folds (type, category) day totals into the same
// aggregate shape the ask path produces. Types never seen stay nil.
func aggregateBreakdown(rows []*bq.DailyBreakdownRow) AggregateSummary {
	var agg AggregateSummary
	var income, expenses float64
	var sawIncome, sawExpense bool

	categories := map[string]float64{}
	order := []string{}

	for _, r := range rows {
		if r == nil || r.Total == nil {
			continue
		}
		total, _ := r.Total.Float64()
		switch strings.ToLower(r.TransactionType) {
		case "income":
			income += total
			sawIncome = true
		case "expense":
			expenses += total
			sawExpense = true
		}
		if r.Category != "" {
			if _, ok := categories[r.Category]; !ok {
				order = append(order, r.Category)
			}
			categories[r.Category] += total
		}
	}

	if sawIncome {
		agg.Income = &income
	}
	if sawExpense {
		agg.Expenses = &expenses
	}
	if sawIncome && sawExpense {
		net := income - expenses
		agg.Net = &net
	}

	for _, c := range order {
		agg.TopCategories = append(agg.TopCategories, CategoryTotal{Category: c, Total: categories[c]})
	}
	sort.SliceStable(agg.TopCategories, func(i, j int) bool {
		return math.Abs(agg.TopCategories[i].Total) > math.Abs(agg.TopCategories[j].Total)
	})
	if len(agg.TopCategories) > topCategoryCount {
		agg.TopCategories = agg.TopCategories[:topCategoryCount]
	}
	return agg
}

func (s *Service) recordSummaryError(tc tenant.Context, userID int64, day civil.Date, start time.Time, message string) {
	s.audit.Submit(audit.Record{
		Log: &bq.QueryLogRow{
			QueryID:         uuid.NewString(),
			UserID:          userID,
			BusinessID:      tc.TenantID,
			NaturalQuery:    "daily summary " + day.String(),
			ActionType:      bq.ActionSummary,
			Status:          bq.StatusError,
			ErrorMessage:    bigquery.NullString{StringVal: message, Valid: true},
			ModelUsed:       s.modelName,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
			ExecutedAt:      time.Now().UTC(),
		},
	})
}

// recordRejection audits a guard-refused candidate. Unlike other
// failures a rejection also gets a report row, so the refused text and
// the reason stay queryable next to the results that were served.
func (s *Service) recordRejection(req AskRequest, sql string, start time.Time, verdict Verdict) {
	queryID := uuid.NewString()
	reportID := uuid.NewString()
	message := "unsafe sql: " + verdict.Reason.String()

	content, _ := json.Marshal(map[string]interface{}{
		"sql":    sql,
		"reason": verdict.Reason.String(),
		"detail": verdict.Detail,
		"meta": map[string]interface{}{
			"business_id": req.Tenant.TenantID,
			"question":    req.Question,
			"created_at":  time.Now().UTC().Format(time.RFC3339),
		},
	})

	s.audit.Submit(audit.Record{
		Log: &bq.QueryLogRow{
			QueryID:         queryID,
			UserID:          req.UserID,
			BusinessID:      req.Tenant.TenantID,
			NaturalQuery:    req.Question,
			ActionType:      bq.ActionSQLSelect,
			GeneratedSQL:    bigquery.NullString{StringVal: sql, Valid: true},
			Status:          bq.StatusError,
			ErrorMessage:    bigquery.NullString{StringVal: message, Valid: true},
			ModelUsed:       s.modelName,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
			ExecutedAt:      time.Now().UTC(),
		},
		Report: &bq.ReportRow{
			ReportID:    reportID,
			UserID:      req.UserID,
			BusinessID:  req.Tenant.TenantID,
			QueryID:     queryID,
			Title:       "Rejected query - " + verdict.Reason.String(),
			ReportType:  bq.ReportCustom,
			PeriodStart: nullDate(periodStart(req.Tenant.Period)),
			PeriodEnd:   nullDate(periodEnd(req.Tenant.Period)),
			Content:     string(content),
			CreatedTS:   time.Now().UTC(),
		},
		Content: content,
	})
}

// recordError submits an audit record for a failed or refused request.
func (s *Service) recordError(req AskRequest, sql string, start time.Time, message string) {
	queryID := uuid.NewString()

	var generated bigquery.NullString
	if sql != "" {
		generated = bigquery.NullString{StringVal: sql, Valid: true}
	}

	s.audit.Submit(audit.Record{
		Log: &bq.QueryLogRow{
			QueryID:         queryID,
			UserID:          req.UserID,
			BusinessID:      req.Tenant.TenantID,
			NaturalQuery:    req.Question,
			ActionType:      bq.ActionSQLSelect,
			GeneratedSQL:    generated,
			Status:          bq.StatusError,
			ErrorMessage:    bigquery.NullString{StringVal: message, Valid: true},
			ModelUsed:       s.modelName,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
			ExecutedAt:      time.Now().UTC(),
		},
	})
}

func currencyLabel(b *bq.BusinessRow) string {
	if b.Currency.Valid && b.Currency.StringVal != "" {
		return b.Currency.StringVal
	}
	return "$ CAD"
}

func periodStart(p *tenant.Period) *civil.Date {
	if p == nil {
		return nil
	}
	return &p.Start
}

func periodEnd(p *tenant.Period) *civil.Date {
	if p == nil {
		return nil
	}
	return &p.End
}

func nullDate(d *civil.Date) bigquery.NullDate {
	if d == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: *d, Valid: true}
}
