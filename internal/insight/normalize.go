package insight

import (
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Row is one untyped result record. The shape depends entirely on what
// the guarded query happened to select.
type Row map[string]interface{}

// Summary holds the computed aggregates of a normalized result set.
type Summary struct {
	RowCount      int                `json:"row_count"`
	NumericTotals map[string]float64 `json:"numeric_totals"`
	NumericAvgs   map[string]float64 `json:"numeric_avgs"`
	TopRows       []Row              `json:"top_rows"`
}

// NormalizedTable is the stable view of an arbitrary query result.
// It is built once and read-only afterwards.
type NormalizedTable struct {
	Columns  []string `json:"columns"`
	Rows     []Row    `json:"rows"`
	Summary  Summary  `json:"summary"`
	Insights []string `json:"insights"`
}

const topRowCount = 5

// Normalize converts raw rows into a NormalizedTable. It never fails:
// empty or nil input yields a well-formed empty table.
func Normalize(raw []Row) NormalizedTable {
	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		if r != nil {
			rows = append(rows, r)
		}
	}

	columns := extractColumns(rows)

	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, c := range columns {
		for _, r := range rows {
			n, ok := toNumber(r[c])
			if !ok {
				continue
			}
			totals[c] += n
			counts[c]++
		}
	}

	avgs := make(map[string]float64, len(totals))
	for c, total := range totals {
		if cnt := counts[c]; cnt > 0 {
			avgs[c] = math.Round(total/float64(cnt)*100) / 100
		}
	}

	return NormalizedTable{
		Columns: columns,
		Rows:    rows,
		Summary: Summary{
			RowCount:      len(rows),
			NumericTotals: totals,
			NumericAvgs:   avgs,
			TopRows:       pickTopRows(rows, columns),
		},
		Insights: buildInsights(rows, columns),
	}
}

// extractColumns returns the union of row keys in first-seen order.
func extractColumns(rows []Row) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		// Map iteration order is random; sort within a row so the
		// column order is deterministic across runs.
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	if columns == nil {
		columns = []string{}
	}
	return columns
}

// toNumber coerces a value to float64. It handles native numbers,
// numeric strings and the arbitrary-precision NUMERIC values BigQuery
// returns as *big.Rat. Anything else is not numeric — callers must
// exclude it, never treat it as zero.
func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case *big.Rat:
		if t == nil {
			return 0, false
		}
		n, _ := t.Float64()
		return n, true
	default:
		return 0, false
	}
}

// pickTopRows ranks rows by the numeric column with the largest observed
// absolute value (ties broken by column order) and returns the top 5 by
// descending absolute value. Without a numeric column it returns the
// first 5 rows unranked.
func pickTopRows(rows []Row, columns []string) []Row {
	var numericCols []string
	for _, c := range columns {
		for _, r := range rows {
			if _, ok := toNumber(r[c]); ok {
				numericCols = append(numericCols, c)
				break
			}
		}
	}

	if len(numericCols) == 0 {
		n := len(rows)
		if n > topRowCount {
			n = topRowCount
		}
		return append([]Row{}, rows[:n]...)
	}

	bestCol := numericCols[0]
	bestScore := math.Inf(-1)
	for _, c := range numericCols {
		maxAbs := 0.0
		for _, r := range rows {
			if n, ok := toNumber(r[c]); ok {
				maxAbs = math.Max(maxAbs, math.Abs(n))
			}
		}
		if maxAbs > bestScore {
			bestScore = maxAbs
			bestCol = c
		}
	}

	sorted := append([]Row{}, rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := toNumber(sorted[i][bestCol])
		b, _ := toNumber(sorted[j][bestCol])
		return math.Abs(a) > math.Abs(b)
	})

	if len(sorted) > topRowCount {
		sorted = sorted[:topRowCount]
	}
	return sorted
}

// totalColumn picks the amount-bearing column for the insight detectors:
// an exact "total_amount" wins, otherwise the first "total_"-prefixed
// column in column order.
func totalColumn(columns []string) string {
	for _, c := range columns {
		if c == "total_amount" {
			return c
		}
	}
	for _, c := range columns {
		if strings.HasPrefix(c, "total_") {
			return c
		}
	}
	return ""
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// buildInsights runs two independent pattern detectors over the rows.
// Zero, one or both may fire.
func buildInsights(rows []Row, columns []string) []string {
	insights := []string{}

	totalCol := totalColumn(columns)

	// Detector 1: category + total_* column -> dominant category and its
	// share of the absolute total.
	if hasColumn(columns, "category") && totalCol != "" {
		type catTotal struct {
			category string
			total    float64
		}
		sortable := make([]catTotal, 0, len(rows))
		for _, r := range rows {
			n, _ := toNumber(r[totalCol])
			sortable = append(sortable, catTotal{category: stringValue(r["category"]), total: n})
		}
		sort.SliceStable(sortable, func(i, j int) bool {
			return math.Abs(sortable[i].total) > math.Abs(sortable[j].total)
		})

		if len(sortable) > 0 {
			top := sortable[0]
			totalAbs := 0.0
			for _, x := range sortable {
				totalAbs += math.Abs(x.total)
			}
			if totalAbs > 0 {
				share := int(math.Round(math.Abs(top.total) / totalAbs * 100))
				insights = append(insights, "Dominant category: "+top.category+" ("+formatNumber(top.total)+") ~ "+strconv.Itoa(share)+"% of total.")
			} else {
				insights = append(insights, "Dominant category: "+top.category+" ("+formatNumber(top.total)+").")
			}
		}
	}

	// Detector 2: transaction_type + total_* column -> income/expense/net.
	if hasColumn(columns, "transaction_type") && totalCol != "" {
		var income, expense float64
		for _, r := range rows {
			n, ok := toNumber(r[totalCol])
			if !ok {
				continue
			}
			switch stringValue(r["transaction_type"]) {
			case "income":
				income += n
			case "expense":
				expense += n
			}
		}
		if income != 0 || expense != 0 {
			net := income - expense
			insights = append(insights, "Summary: income="+formatNumber(income)+", expenses="+formatNumber(expense)+", net="+formatNumber(net)+".")
		}
	}

	return insights
}

func stringValue(v interface{}) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return "unknown"
	}
	return s
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
