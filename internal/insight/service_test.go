package insight

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/audit"
	bq "github.com/dvloznov/finsight/internal/bigquery"
	"github.com/dvloznov/finsight/internal/tenant"
)

// fakeLLM scripts both model calls: the SQL call runs at temperature 0,
// the narrative call at 0.2, which is how the two are told apart here.
type fakeLLM struct {
	sqlResponse  string
	sqlErr       error
	narrative    string
	narrativeErr error
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	if temperature == 0 {
		return f.sqlResponse, f.sqlErr
	}
	return f.narrative, f.narrativeErr
}

type fakeRunner struct {
	rows    []Row
	err     error
	lastSQL string
}

func (f *fakeRunner) RunQuery(ctx context.Context, sql string) ([]Row, error) {
	f.lastSQL = sql
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeBusinesses struct {
	row *bq.BusinessRow
	err error
}

func (f *fakeBusinesses) GetBusiness(ctx context.Context, businessID int64) (*bq.BusinessRow, error) {
	return f.row, f.err
}

type fakeStats struct {
	rows []*bq.DailyBreakdownRow
	err  error
}

func (f *fakeStats) DailyBreakdown(ctx context.Context, businessID int64, day civil.Date) ([]*bq.DailyBreakdownRow, error) {
	return f.rows, f.err
}

type fakeSink struct {
	records []audit.Record
}

func (f *fakeSink) Submit(rec audit.Record) bool {
	f.records = append(f.records, rec)
	return true
}

func testBusiness() *bq.BusinessRow {
	return &bq.BusinessRow{
		BusinessID: 4,
		Name:       "Acme Corp",
		Currency:   bigquery.NullString{StringVal: "$ CAD", Valid: true},
	}
}

func newTestService(llm *fakeLLM, runner *fakeRunner, businesses *fakeBusinesses, stats *fakeStats, sink *fakeSink) *Service {
	return NewService(Deps{
		LLM:        llm,
		Runner:     runner,
		Businesses: businesses,
		Stats:      stats,
		Audit:      sink,
		ModelName:  "gemini-test",
		Log:        zerolog.Nop(),
	})
}

func TestService_Ask_Success(t *testing.T) {
	llm := &fakeLLM{
		sqlResponse: `{"sql": "SELECT category, SUM(amount) AS total_expense FROM transactions WHERE business_id = 4 AND transaction_type = 'expense' GROUP BY category LIMIT 50"}`,
		narrative:   "Rent dominates your spending.",
	}
	runner := &fakeRunner{rows: []Row{
		{"category": "rent", "total_expense": 1800.0},
		{"category": "software", "total_expense": 120.0},
	}}
	sink := &fakeSink{}

	svc := newTestService(llm, runner, &fakeBusinesses{row: testBusiness()}, &fakeStats{}, sink)

	tc, _ := tenant.New(4, nil)
	res, err := svc.Ask(context.Background(), AskRequest{Tenant: tc, UserID: 7, Question: "expenses by category"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !strings.Contains(res.SQL, "business_id = 4") {
		t.Errorf("result SQL = %q, missing tenant filter", res.SQL)
	}
	if res.Narrative != "Rent dominates your spending." {
		t.Errorf("Narrative = %q", res.Narrative)
	}
	if res.ReportID == "" || res.QueryID == "" {
		t.Error("ReportID and QueryID must be assigned on success")
	}
	if res.TenantName != "Acme Corp" {
		t.Errorf("TenantName = %q", res.TenantName)
	}
	if res.Normalized.Summary.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.Normalized.Summary.RowCount)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Log.Status != bq.StatusSuccess {
		t.Errorf("audit status = %q", rec.Log.Status)
	}
	if rec.Log.QueryID != res.QueryID {
		t.Error("audit QueryID must match the id returned to the caller")
	}
	if rec.Report == nil || rec.Report.ReportID != res.ReportID {
		t.Error("audit report must carry the returned ReportID")
	}
	if rec.Report.QueryID != res.QueryID {
		t.Error("report must reference its query log row")
	}
}

func TestService_Ask_UnknownTenant(t *testing.T) {
	svc := newTestService(&fakeLLM{}, &fakeRunner{}, &fakeBusinesses{}, &fakeStats{}, &fakeSink{})

	tc, _ := tenant.New(99, nil)
	_, err := svc.Ask(context.Background(), AskRequest{Tenant: tc, Question: "anything"})
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("Ask() error = %v, want ErrTenantNotFound", err)
	}
}

func TestService_Ask_GuardRejection(t *testing.T) {
	llm := &fakeLLM{sqlResponse: `{"sql": "DELETE FROM transactions WHERE business_id = 4"}`}
	runner := &fakeRunner{}
	sink := &fakeSink{}
	svc := newTestService(llm, runner, &fakeBusinesses{row: testBusiness()}, &fakeStats{}, sink)

	tc, _ := tenant.New(4, nil)
	_, err := svc.Ask(context.Background(), AskRequest{Tenant: tc, Question: "delete everything"})

	var unsafeErr *UnsafeQueryError
	if !errors.As(err, &unsafeErr) {
		t.Fatalf("Ask() error = %v, want UnsafeQueryError", err)
	}
	if runner.lastSQL != "" {
		t.Fatalf("rejected query reached the runner: %q", runner.lastSQL)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1 error record", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Log.Status != bq.StatusError {
		t.Errorf("audit status = %q, want error", rec.Log.Status)
	}
	if !rec.Log.GeneratedSQL.Valid {
		t.Error("rejected SQL must still be recorded for the audit trail")
	}
	if rec.Report == nil {
		t.Fatal("a rejection must still produce a report row")
	}
	if rec.Report.QueryID != rec.Log.QueryID {
		t.Error("rejection report must reference its query log row")
	}
	if !strings.Contains(rec.Report.Content, unsafeErr.Verdict.Reason.String()) {
		t.Errorf("rejection report content = %q, must capture the reason", rec.Report.Content)
	}
	if !strings.Contains(rec.Report.Content, "DELETE FROM transactions") {
		t.Error("rejection report content must capture the refused text")
	}
}

func TestService_Ask_GenerationFailure(t *testing.T) {
	llm := &fakeLLM{sqlErr: errors.New("provider timeout")}
	sink := &fakeSink{}
	svc := newTestService(llm, &fakeRunner{}, &fakeBusinesses{row: testBusiness()}, &fakeStats{}, sink)

	tc, _ := tenant.New(4, nil)
	_, err := svc.Ask(context.Background(), AskRequest{Tenant: tc, Question: "income"})

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Ask() error = %v, want GenerationError", err)
	}
	if genErr.Stage != "sql" {
		t.Errorf("Stage = %q, want sql", genErr.Stage)
	}
	if len(sink.records) != 1 || sink.records[0].Log.Status != bq.StatusError {
		t.Error("generation failures must leave an error audit record")
	}
}

func TestService_Ask_ExecutionFailure(t *testing.T) {
	llm := &fakeLLM{
		sqlResponse: `{"sql": "SELECT no_such_column FROM transactions WHERE business_id = 4 LIMIT 10"}`,
	}
	runner := &fakeRunner{err: errors.New("column no_such_column not found")}
	sink := &fakeSink{}
	svc := newTestService(llm, runner, &fakeBusinesses{row: testBusiness()}, &fakeStats{}, sink)

	tc, _ := tenant.New(4, nil)
	_, err := svc.Ask(context.Background(), AskRequest{Tenant: tc, Question: "weird question"})

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Ask() error = %v, want ExecutionError", err)
	}
	if len(sink.records) != 1 || sink.records[0].Log.Status != bq.StatusError {
		t.Error("execution failures must leave an error audit record")
	}
}

func TestService_DailySummary(t *testing.T) {
	llm := &fakeLLM{narrative: "A profitable day."}
	stats := &fakeStats{rows: []*bq.DailyBreakdownRow{
		{TransactionType: "income", Category: "sales", Total: big.NewRat(5000, 1)},
		{TransactionType: "expense", Category: "rent", Total: big.NewRat(1800, 1)},
		{TransactionType: "expense", Category: "software", Total: big.NewRat(120, 1)},
	}}
	sink := &fakeSink{}
	svc := newTestService(llm, &fakeRunner{}, &fakeBusinesses{row: testBusiness()}, stats, sink)

	tc, _ := tenant.New(4, nil)
	day := civil.Date{Year: 2025, Month: 6, Day: 15}
	res, err := svc.DailySummary(context.Background(), tc, 7, day)
	if err != nil {
		t.Fatalf("DailySummary() error = %v", err)
	}

	if res.Aggregates.Income == nil || *res.Aggregates.Income != 5000 {
		t.Errorf("Income = %v, want 5000", res.Aggregates.Income)
	}
	if res.Aggregates.Expenses == nil || *res.Aggregates.Expenses != 1920 {
		t.Errorf("Expenses = %v, want 1920", res.Aggregates.Expenses)
	}
	if res.Aggregates.Net == nil || *res.Aggregates.Net != 3080 {
		t.Errorf("Net = %v, want 3080", res.Aggregates.Net)
	}
	if len(res.Aggregates.TopCategories) == 0 || res.Aggregates.TopCategories[0].Category != "sales" {
		t.Errorf("TopCategories = %v, want sales first", res.Aggregates.TopCategories)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Log.ActionType != bq.ActionSummary {
		t.Errorf("ActionType = %q, want summary", rec.Log.ActionType)
	}
	if rec.Report.ReportType != bq.ReportSummary {
		t.Errorf("ReportType = %q, want summary", rec.Report.ReportType)
	}
	if !rec.Report.PeriodStart.Valid || rec.Report.PeriodStart.Date != day {
		t.Errorf("PeriodStart = %+v, want the summarized day", rec.Report.PeriodStart)
	}
}

func TestService_DailySummary_AbsentTypeStaysAbsent(t *testing.T) {
	llm := &fakeLLM{narrative: "Only income today."}
	stats := &fakeStats{rows: []*bq.DailyBreakdownRow{
		{TransactionType: "income", Category: "sales", Total: big.NewRat(900, 1)},
	}}
	svc := newTestService(llm, &fakeRunner{}, &fakeBusinesses{row: testBusiness()}, stats, &fakeSink{})

	tc, _ := tenant.New(4, nil)
	res, err := svc.DailySummary(context.Background(), tc, 7, civil.Date{Year: 2025, Month: 6, Day: 15})
	if err != nil {
		t.Fatalf("DailySummary() error = %v", err)
	}

	if res.Aggregates.Expenses != nil {
		t.Error("no expense rows: Expenses must stay nil, not zero")
	}
	if res.Aggregates.Net != nil {
		t.Error("Net requires both sides; it must stay nil")
	}
}
