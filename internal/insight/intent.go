package insight

import "strings"

// Intent is the classified analytical purpose of a natural-language
// question. The set is closed; every question maps to exactly one value.
type Intent int

const (
	IntentGeneric Intent = iota
	IntentAggIncome
	IntentAggExpense
	IntentAggExpenseByCategory
	IntentNetIncome
	IntentListRows
	IntentTopRanking
)

// String returns the tag embedded in the SQL-generation prompt.
func (i Intent) String() string {
	switch i {
	case IntentAggIncome:
		return "AGG_INCOME"
	case IntentAggExpense:
		return "AGG_EXPENSES"
	case IntentAggExpenseByCategory:
		return "AGG_EXPENSES_BY_CATEGORY"
	case IntentNetIncome:
		return "NET_INCOME_MINUS_EXPENSES"
	case IntentListRows:
		return "LIST_TRANSACTIONS"
	case IntentTopRanking:
		return "TOP_CATEGORIES_OR_BIGGEST"
	default:
		return "GENERIC_SELECT"
	}
}

// Keyword sets per intent, evaluated in declaration order so the first
// matching intent wins. Grouping cues come before the generic
// income/expense cues and ranking cues before listing cues.
var intentCues = []struct {
	intent   Intent
	keywords []string
}{
	{IntentAggExpenseByCategory, []string{"by category", "per category", "categories", "breakdown"}},
	{IntentAggIncome, []string{"income", "revenue", "earned", "sales"}},
	{IntentAggExpense, []string{"expense", "spend", "cost"}},
	{IntentNetIncome, []string{"net", "profit", "margin", "bottom line"}},
	{IntentTopRanking, []string{"top", "biggest", "largest", "best", "most"}},
	{IntentListRows, []string{"list", "show", "transactions", "details"}},
}

// ClassifyIntent maps a question to one Intent. It is total: anything
// that matches no cue is a generic select.
func ClassifyIntent(question string) Intent {
	q := strings.ToLower(question)

	for _, cue := range intentCues {
		for _, kw := range cue.keywords {
			if strings.Contains(q, kw) {
				return cue.intent
			}
		}
	}
	return IntentGeneric
}
