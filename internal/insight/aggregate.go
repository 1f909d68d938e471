package insight

import (
	"math"
	"sort"
	"strings"
)

// CategoryTotal is one (category, total) pair in a ranking.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// AggregateSummary carries the figures the narrative is allowed to use.
// A nil pointer means "not computed" — it must never be collapsed to
// zero, because an absent expense figure is not the same thing as zero
// expenses.
type AggregateSummary struct {
	Income        *float64        `json:"income,omitempty"`
	Expenses      *float64        `json:"expenses,omitempty"`
	Net           *float64        `json:"net,omitempty"`
	TopCategories []CategoryTotal `json:"top_categories"`
}

const topCategoryCount = 5

// ExtractAggregates derives income/expense/net and a top-category
// ranking from a normalized table. Priority chain: direct named total
// columns, then row-level grouping by transaction_type, then a single
// generic total column attributed by keywords in the original question.
func ExtractAggregates(table NormalizedTable, question string) AggregateSummary {
	var agg AggregateSummary

	// 1) Direct named total columns.
	if v, ok := table.Summary.NumericTotals["total_income"]; ok {
		agg.Income = ptr(v)
	}
	for _, name := range []string{"total_expense", "total_expenses"} {
		if v, ok := table.Summary.NumericTotals[name]; ok {
			agg.Expenses = ptr(v)
			break
		}
	}
	for _, name := range []string{"net_income", "net_amount", "net"} {
		if v, ok := table.Summary.NumericTotals[name]; ok {
			agg.Net = ptr(v)
			break
		}
	}

	amountCol := amountColumn(table.Columns)

	// 2) Row-level grouping by the type discriminator.
	if agg.Income == nil && agg.Expenses == nil &&
		hasColumn(table.Columns, "transaction_type") && amountCol != "" {
		var income, expense float64
		var sawIncome, sawExpense bool
		for _, r := range table.Rows {
			n, ok := toNumber(r[amountCol])
			if !ok {
				continue
			}
			switch stringValue(r["transaction_type"]) {
			case "income":
				income += n
				sawIncome = true
			case "expense":
				expense += n
				sawExpense = true
			}
		}
		if sawIncome {
			agg.Income = ptr(income)
		}
		if sawExpense {
			agg.Expenses = ptr(expense)
		}
	}

	// 3) A single generic total column, attributed only by what the
	// question asked for — never invented.
	if agg.Income == nil && agg.Expenses == nil && amountCol != "" {
		if v, ok := table.Summary.NumericTotals[amountCol]; ok {
			q := strings.ToLower(question)
			switch {
			case containsAny(q, "income", "revenue", "earned"):
				agg.Income = ptr(v)
			case containsAny(q, "expense", "spend", "cost"):
				agg.Expenses = ptr(v)
			}
		}
	}

	if agg.Net == nil && agg.Income != nil && agg.Expenses != nil {
		agg.Net = ptr(*agg.Income - *agg.Expenses)
	}

	agg.TopCategories = topCategories(table, amountCol)
	return agg
}

// amountColumn picks the column holding amounts: an exact total column
// first, then any total_* column, then a plain "amount".
func amountColumn(columns []string) string {
	if c := totalColumn(columns); c != "" {
		return c
	}
	if hasColumn(columns, "amount") {
		return "amount"
	}
	return ""
}

func topCategories(table NormalizedTable, amountCol string) []CategoryTotal {
	out := []CategoryTotal{}
	if !hasColumn(table.Columns, "category") || amountCol == "" {
		return out
	}

	for _, r := range table.Rows {
		n, ok := toNumber(r[amountCol])
		if !ok {
			continue
		}
		out = append(out, CategoryTotal{Category: stringValue(r["category"]), Total: n})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Total) > math.Abs(out[j].Total)
	})
	if len(out) > topCategoryCount {
		out = out[:topCategoryCount]
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func ptr(v float64) *float64 {
	return &v
}
