package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// QueryActionType classifies what kind of AI action produced a query log row.
type QueryActionType string

const (
	ActionSQLSelect QueryActionType = "sql_select"
	ActionSummary   QueryActionType = "summary"
)

// QueryStatus records whether the AI action succeeded.
type QueryStatus string

const (
	StatusSuccess QueryStatus = "success"
	StatusError   QueryStatus = "error"
)

// ReportType classifies persisted reports.
type ReportType string

const (
	ReportCustom  ReportType = "custom"
	ReportSummary ReportType = "summary"
)

// BusinessRepository resolves tenants. A question is only answered for a
// business that actually exists; the lookup also supplies the display name
// used in prompts and responses.
type BusinessRepository interface {
	// GetBusiness retrieves a business by id. Returns (nil, nil) when absent.
	GetBusiness(ctx context.Context, businessID int64) (*BusinessRow, error)
}

// QueryLogRepository persists the append-only audit trail of AI queries.
type QueryLogRepository interface {
	InsertQueryLog(ctx context.Context, row *QueryLogRow) error
}

// ReportRepository persists and lists generated reports.
type ReportRepository interface {
	InsertReport(ctx context.Context, row *ReportRow) error

	// ListReports retrieves the most recent reports for a business.
	ListReports(ctx context.Context, businessID int64, limit int) ([]*ReportRow, error)
}

// TransactionStatsRepository serves the parameterized aggregate queries used
// by the daily summary endpoint (these never go through the model).
type TransactionStatsRepository interface {
	// DailyBreakdown sums a business's transactions for one day, grouped by
	// transaction type and category.
	DailyBreakdown(ctx context.Context, businessID int64, day civil.Date) ([]*DailyBreakdownRow, error)
}

// BusinessRow represents a tenant record in BigQuery.
type BusinessRow struct {
	BusinessID int64               `bigquery:"id_business"`
	Name       string              `bigquery:"name"`
	Currency   bigquery.NullString `bigquery:"currency"`
	CreatedTS  time.Time           `bigquery:"created_ts"`
}

// QueryLogRow is one append-only audit record of an AI query. A row is
// written for accepted and rejected candidates alike.
type QueryLogRow struct {
	QueryID    string `bigquery:"query_id"`
	UserID     int64  `bigquery:"user_id"`
	BusinessID int64  `bigquery:"business_id"`

	NaturalQuery string              `bigquery:"natural_query"`
	ActionType   QueryActionType     `bigquery:"action_type"`
	GeneratedSQL bigquery.NullString `bigquery:"generated_sql"`

	Status       QueryStatus         `bigquery:"status"`
	ErrorMessage bigquery.NullString `bigquery:"error_message"`

	ModelUsed       string    `bigquery:"model_used"`
	ExecutionTimeMS int64     `bigquery:"execution_time_ms"`
	ExecutedAt      time.Time `bigquery:"executed_at"`
}

// ReportRow is one persisted report. QueryID references the query log row
// that produced it (one-to-one).
type ReportRow struct {
	ReportID   string `bigquery:"report_id"`
	UserID     int64  `bigquery:"user_id"`
	BusinessID int64  `bigquery:"business_id"`
	QueryID    string `bigquery:"query_id"`

	Title      string     `bigquery:"title"`
	ReportType ReportType `bigquery:"report_type"`

	PeriodStart bigquery.NullDate `bigquery:"period_start"`
	PeriodEnd   bigquery.NullDate `bigquery:"period_end"`

	// Content holds the (possibly truncated) report payload inline.
	// ContentURI points at the full JSON archive in GCS when archiving
	// is enabled.
	Content    string              `bigquery:"content"`
	ContentURI bigquery.NullString `bigquery:"content_uri"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// DailyBreakdownRow is one (type, category) aggregate for a single day.
type DailyBreakdownRow struct {
	TransactionType string   `bigquery:"transaction_type"`
	Category        string   `bigquery:"category"`
	Total           *big.Rat `bigquery:"total"`
}
