package insight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The guard is the safety boundary between model-generated SQL and the
// data store. It is a single-pass validator, not a parser: every rule is
// a rejection rule and nothing is ever rewritten. When in doubt it
// rejects, because a silently "fixed" candidate would hide the failure
// instead of surfacing it.

// MaxRowLimit is the ceiling for the mandatory LIMIT clause.
const MaxRowLimit = 50

// RejectReason says why the guard refused a candidate query.
type RejectReason int

const (
	ReasonNone RejectReason = iota
	ReasonEmpty
	ReasonMultiStatement
	ReasonNotSelect
	ReasonForbiddenKeyword
	ReasonSubquery
	ReasonTableNotAllowed
	ReasonMissingTenantFilter
	ReasonBadLimit
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonEmpty:
		return "empty query"
	case ReasonMultiStatement:
		return "statement separator"
	case ReasonNotSelect:
		return "not a select"
	case ReasonForbiddenKeyword:
		return "forbidden keyword"
	case ReasonSubquery:
		return "subquery"
	case ReasonTableNotAllowed:
		return "table not allow-listed"
	case ReasonMissingTenantFilter:
		return "missing tenant filter"
	case ReasonBadLimit:
		return "missing or out-of-range limit"
	default:
		return "unknown"
	}
}

// Verdict is the guard's decision for one candidate. It is a pure
// function of the query text and the caller's tenant id.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
	Detail   string
}

func reject(reason RejectReason, detail string) Verdict {
	return Verdict{Accepted: false, Reason: reason, Detail: detail}
}

// tableClass distinguishes how a table must be scoped to the caller.
type tableClass int

const (
	// tenantKeyed tables carry a business_id foreign key.
	tenantKeyed tableClass = iota
	// tenantIdentity is the tenant table itself, filtered on its own
	// primary key.
	tenantIdentity
)

type allowedTable struct {
	class        tableClass
	tenantColumn string
}

// allowedTables is the fixed allow-list. Everything else is rejected,
// whatever the rest of the query looks like.
var allowedTables = map[string]allowedTable{
	"transactions": {class: tenantKeyed, tenantColumn: "business_id"},
	"businesses":   {class: tenantIdentity, tenantColumn: "id_business"},
}

var (
	lineCommentRe  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	// Mutation verbs, transaction control, set combination, CTEs,
	// introspection tables and timing primitives. "transaction" (the SQL
	// keyword) does not match the "transactions" table name thanks to
	// the word boundary.
	forbiddenRe = regexp.MustCompile(`\b(insert|update|delete|drop|alter|truncate|create|grant|revoke|copy|execute|call|merge|transaction|commit|rollback|begin|union|join|with|pg_sleep|information_schema|pg_catalog)\b`)

	parenSelectRe = regexp.MustCompile(`\(\s*select\b`)
	selectWordRe  = regexp.MustCompile(`\bselect\b`)
	fromTableRe   = regexp.MustCompile(`\bfrom\s+([a-z0-9_."]+)`)
	limitRe       = regexp.MustCompile(`\blimit\s+(\d+)\b`)
)

// InspectQuery validates a candidate query for the given tenant. It is
// total: any input string, empty included, terminates with a Verdict.
func InspectQuery(sql string, tenantID int64) Verdict {
	cleaned := normalizeSQL(sql)
	if cleaned == "" {
		return reject(ReasonEmpty, "")
	}

	// Multi-statement execution is refused before anything else; a
	// trailing separator is just as suspect as a second statement.
	if strings.Contains(cleaned, ";") {
		return reject(ReasonMultiStatement, ";")
	}

	if !strings.HasPrefix(cleaned, "select ") {
		return reject(ReasonNotSelect, "")
	}

	if m := forbiddenRe.FindString(cleaned); m != "" {
		return reject(ReasonForbiddenKeyword, m)
	}

	// A second query keyword means a subquery in some shape; the
	// grammar here only recognizes one.
	if parenSelectRe.MatchString(cleaned) || len(selectWordRe.FindAllString(cleaned, 2)) > 1 {
		return reject(ReasonSubquery, "")
	}

	table := extractFromTable(cleaned)
	if table == "" {
		return reject(ReasonTableNotAllowed, "no table reference")
	}
	allowed, ok := allowedTables[table]
	if !ok {
		return reject(ReasonTableNotAllowed, table)
	}

	// The single most important rule: the caller's tenant id must be
	// bound as a literal equality filter on the right column. This is
	// what stops a syntactically valid cross-tenant query.
	tenantFilterRe := regexp.MustCompile(`\b` + allowed.tenantColumn + `\s*=\s*` + strconv.FormatInt(tenantID, 10) + `\b`)
	if !tenantFilterRe.MatchString(cleaned) {
		return reject(ReasonMissingTenantFilter, fmt.Sprintf("%s = %d", allowed.tenantColumn, tenantID))
	}

	limit, ok := extractLimit(cleaned)
	if !ok || limit <= 0 || limit > MaxRowLimit {
		return reject(ReasonBadLimit, "")
	}

	return Verdict{Accepted: true, Reason: ReasonNone}
}

// normalizeSQL strips comments, collapses whitespace and lowercases.
func normalizeSQL(sql string) string {
	s := lineCommentRe.ReplaceAllString(sql, "")
	s = blockCommentRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// extractFromTable finds the single "from <table>" reference. Quotes and
// a "public." schema prefix are tolerated and normalized away.
func extractFromTable(cleaned string) string {
	m := fromTableRe.FindStringSubmatch(cleaned)
	if len(m) < 2 {
		return ""
	}
	table := strings.ReplaceAll(m[1], `"`, "")
	table = strings.TrimPrefix(table, "public.")
	return table
}

func extractLimit(cleaned string) (int, bool) {
	m := limitRe.FindStringSubmatch(cleaned)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
