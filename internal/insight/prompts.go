package insight

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dvloznov/finsight/internal/tenant"
)

// buildSQLPrompt constructs the SQL-generation prompt. The tenant id,
// the allow-listed schema and the limit ceiling are embedded literally
// so the guard can hold the model to exactly what was asked of it.
func buildSQLPrompt(question string, tc tenant.Context, intent Intent) string {
	tenantID := strconv.FormatInt(tc.TenantID, 10)

	var dateRule string
	if tc.Period != nil {
		dateRule = "- Also filter transaction_date BETWEEN '" + tc.Period.Start.String() +
			"' AND '" + tc.Period.End.String() + "' (inclusive)"
	} else {
		dateRule = "- No date filter unless the question demands one"
	}

	var b strings.Builder
	b.WriteString("You are a SQL generator for a finance analytics service.\n\n")
	b.WriteString("GOAL:\n")
	b.WriteString("Return ONE read-only SQL query answering the question.\n\n")

	b.WriteString("STRICT RULES (all of them, always):\n")
	b.WriteString("- READ ONLY: a single SELECT statement\n")
	b.WriteString("- No ';'\n")
	b.WriteString("- No JOIN, UNION, WITH, subqueries\n")
	b.WriteString("- Allowed table: transactions only\n")
	b.WriteString("- MUST contain: business_id = " + tenantID + "\n")
	b.WriteString("- MUST end with: LIMIT " + strconv.Itoa(MaxRowLimit) + " (or lower)\n\n")

	b.WriteString("SCHEMA:\n")
	b.WriteString("transactions(\n")
	b.WriteString("  id_transaction,\n")
	b.WriteString("  business_id,\n")
	b.WriteString("  transaction_date,\n")
	b.WriteString("  transaction_type,  -- 'income' | 'expense'\n")
	b.WriteString("  amount,\n")
	b.WriteString("  category\n")
	b.WriteString(")\n\n")

	b.WriteString("DETECTED INTENT:\n")
	b.WriteString(intent.String() + "\n")
	b.WriteString(intentRule(intent))
	b.WriteString("\n")

	b.WriteString("PERIOD CONSTRAINTS:\n")
	b.WriteString(dateRule + "\n\n")

	b.WriteString("OUTPUT:\n")
	b.WriteString("- Explicit columns with clear snake_case aliases\n")
	b.WriteString("- Aggregations use SUM(amount)\n")
	b.WriteString("- Respond with ONLY a JSON object of the form {\"sql\": \"<query>\"}\n")
	b.WriteString("- No markdown, no commentary, no code fences\n\n")

	b.WriteString("USER QUESTION:\n")
	b.WriteString("\"" + question + "\"\n")

	return b.String()
}

// intentRule returns the per-intent structural constraint for the query.
func intentRule(intent Intent) string {
	switch intent {
	case IntentAggIncome:
		return "- Sum income amounts, alias the result total_income\n"
	case IntentAggExpense:
		return "- Sum expense amounts, alias the result total_expense\n"
	case IntentAggExpenseByCategory:
		return "- Group by category, alias the sum total_expense, order descending\n"
	case IntentNetIncome:
		return "- Return TWO conditional sums in one row: one aliased total_income, one aliased total_expense (never a single net figure)\n"
	case IntentTopRanking:
		return "- Order by the aggregated amount descending so the biggest entries come first\n"
	case IntentListRows:
		return "- Select individual transaction rows, most recent first\n"
	default:
		return ""
	}
}

const absentMarker = "not provided"

// NarrativeInput is everything the narrative generator is allowed to
// see: already-computed aggregates and a capped sample of rows.
type NarrativeInput struct {
	BusinessName string
	PeriodLabel  string
	Question     string
	Aggregates   AggregateSummary
	Sample       []Row
	Currency     string
}

// buildNarrativePrompt constrains the model to the extracted figures.
// Absent aggregates are rendered as an explicit marker so a missing
// expense figure is never narrated as "zero expenses".
func buildNarrativePrompt(in NarrativeInput) string {
	currency := in.Currency
	if currency == "" {
		currency = "$ CAD"
	}

	var b strings.Builder
	b.WriteString("You are a finance assistant. Answer the user's question.\n\n")
	b.WriteString("STRICT RULES:\n")
	b.WriteString("- Plain text only: no markdown, no **, no bullet characters\n")
	b.WriteString("- At most two short paragraphs, then two numbered actions (1. / 2.)\n")
	b.WriteString("- NEVER invent figures: use ONLY the data below\n")
	b.WriteString("- If a figure says \"" + absentMarker + "\", say it was not computed; do NOT call it zero\n")
	b.WriteString("- All amounts are in " + currency + "\n\n")

	b.WriteString("CONTEXT:\n")
	b.WriteString("Business: " + in.BusinessName + "\n")
	b.WriteString("Period: " + in.PeriodLabel + "\n")
	b.WriteString("Income: " + formatAggregate(in.Aggregates.Income) + "\n")
	b.WriteString("Expenses: " + formatAggregate(in.Aggregates.Expenses) + "\n")
	b.WriteString("Net: " + formatAggregate(in.Aggregates.Net) + "\n")
	b.WriteString("Top categories: " + formatCategories(in.Aggregates.TopCategories) + "\n")

	if len(in.Sample) > 0 {
		b.WriteString("Sample rows (up to " + strconv.Itoa(topRowCount) + "):\n")
		sample := in.Sample
		if len(sample) > topRowCount {
			sample = sample[:topRowCount]
		}
		for _, r := range sample {
			b.WriteString("  " + formatRow(r) + "\n")
		}
	}

	b.WriteString("\nUSER QUESTION:\n")
	b.WriteString(in.Question + "\n")

	return b.String()
}

func formatAggregate(v *float64) string {
	if v == nil {
		return absentMarker
	}
	return formatNumber(*v)
}

func formatCategories(cats []CategoryTotal) string {
	if len(cats) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, c.Category+": "+formatNumber(c.Total))
	}
	return strings.Join(parts, ", ")
}

func formatRow(r Row) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	// Deterministic rendering regardless of map order.
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if n, ok := toNumber(r[k]); ok {
			parts = append(parts, k+"="+formatNumber(n))
			continue
		}
		if s, ok := r[k].(string); ok {
			parts = append(parts, k+"="+s)
		}
	}
	return strings.Join(parts, " ")
}
