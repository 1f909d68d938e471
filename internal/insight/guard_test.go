package insight

import (
	"strings"
	"testing"
)

func TestInspectQuery_AcceptedQueries(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		tenantID int64
	}{
		{
			name:     "income aggregate",
			sql:      "select sum(amount) as total_income from transactions where business_id = 4 and transaction_type = 'income' limit 1",
			tenantID: 4,
		},
		{
			name:     "expense by category",
			sql:      "select category, sum(amount) as total_expense from transactions where business_id = 4 and transaction_type='expense' group by category order by total_expense desc limit 5",
			tenantID: 4,
		},
		{
			name:     "schema-qualified table",
			sql:      "select * from public.transactions where business_id = 12 limit 50",
			tenantID: 12,
		},
		{
			name:     "tenant identity table filters on its own key",
			sql:      "select name from businesses where id_business = 4 limit 1",
			tenantID: 4,
		},
		{
			name:     "mixed case and extra whitespace",
			sql:      "  SELECT   amount\n FROM transactions\n WHERE business_id=7 LIMIT 10 ",
			tenantID: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := InspectQuery(tt.sql, tt.tenantID)
			if !v.Accepted {
				t.Errorf("InspectQuery rejected a safe query: reason=%s detail=%q", v.Reason, v.Detail)
			}
		})
	}
}

func TestInspectQuery_RejectedQueries(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		tenantID   int64
		wantReason RejectReason
	}{
		{
			name:       "empty input",
			sql:        "",
			tenantID:   4,
			wantReason: ReasonEmpty,
		},
		{
			name:       "whitespace only",
			sql:        "   \n\t ",
			tenantID:   4,
			wantReason: ReasonEmpty,
		},
		{
			name:       "statement separator checked before keywords",
			sql:        "select * from transactions where business_id = 4 limit 10; drop table transactions",
			tenantID:   4,
			wantReason: ReasonMultiStatement,
		},
		{
			name:       "not a select",
			sql:        "explain select * from transactions where business_id = 4 limit 10",
			tenantID:   4,
			wantReason: ReasonNotSelect,
		},
		{
			name:       "mutation verb",
			sql:        "select * from transactions where business_id = 4 and delete = 1 limit 10",
			tenantID:   4,
			wantReason: ReasonForbiddenKeyword,
		},
		{
			name:       "union",
			sql:        "select amount from transactions where business_id = 4 limit 10 union select 1",
			tenantID:   4,
			wantReason: ReasonForbiddenKeyword,
		},
		{
			name:       "join",
			sql:        "select t.amount from transactions t join businesses b on b.id_business = t.business_id where business_id = 4 limit 10",
			tenantID:   4,
			wantReason: ReasonForbiddenKeyword,
		},
		{
			name:       "cte introducer",
			sql:        "with x as (select 1) select * from transactions where business_id = 4 limit 10",
			tenantID:   4,
			wantReason: ReasonNotSelect,
		},
		{
			name:       "introspection table",
			sql:        "select * from transactions where business_id = 4 and information_schema limit 10",
			tenantID:   4,
			wantReason: ReasonForbiddenKeyword,
		},
		{
			name:       "parenthesized subquery",
			sql:        "select * from transactions where business_id = 4 and amount > (select 0) limit 10",
			tenantID:   4,
			wantReason: ReasonSubquery,
		},
		{
			name:       "table not allow-listed",
			sql:        "select * from users where business_id = 4 limit 10",
			tenantID:   4,
			wantReason: ReasonTableNotAllowed,
		},
		{
			name:       "no table reference",
			sql:        "select 1 limit 1",
			tenantID:   4,
			wantReason: ReasonTableNotAllowed,
		},
		{
			name:       "wrong tenant id",
			sql:        "select sum(amount) as total_income from transactions where business_id = 7 and transaction_type = 'income' limit 1",
			tenantID:   4,
			wantReason: ReasonMissingTenantFilter,
		},
		{
			name:       "tenant filter missing entirely",
			sql:        "select sum(amount) from transactions where transaction_type = 'income' limit 1",
			tenantID:   4,
			wantReason: ReasonMissingTenantFilter,
		},
		{
			name:       "tenant id prefix is not a match",
			sql:        "select * from transactions where business_id = 40 limit 10",
			tenantID:   4,
			wantReason: ReasonMissingTenantFilter,
		},
		{
			name:       "identity table filtered on foreign key column",
			sql:        "select name from businesses where business_id = 4 limit 1",
			tenantID:   4,
			wantReason: ReasonMissingTenantFilter,
		},
		{
			name:       "limit missing",
			sql:        "select * from transactions where business_id = 4",
			tenantID:   4,
			wantReason: ReasonBadLimit,
		},
		{
			name:       "limit zero",
			sql:        "select * from transactions where business_id = 4 limit 0",
			tenantID:   4,
			wantReason: ReasonBadLimit,
		},
		{
			name:       "limit above ceiling",
			sql:        "select * from transactions where business_id = 4 limit 500",
			tenantID:   4,
			wantReason: ReasonBadLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := InspectQuery(tt.sql, tt.tenantID)
			if v.Accepted {
				t.Fatalf("InspectQuery accepted an unsafe query: %s", tt.sql)
			}
			if v.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s (detail=%q)", v.Reason, tt.wantReason, v.Detail)
			}
		})
	}
}

func TestInspectQuery_CommentsStripped(t *testing.T) {
	sql := "select amount -- sneaky comment\nfrom transactions /* block */ where business_id = 4 limit 5"
	v := InspectQuery(sql, 4)
	if !v.Accepted {
		t.Errorf("expected commented-but-safe query to pass after stripping, got %s", v.Reason)
	}

	hidden := "select * from transactions where business_id = 4 limit 5 /* ; drop table transactions */"
	if v := InspectQuery(hidden, 4); !v.Accepted {
		t.Errorf("separator inside a stripped comment should not trip the guard, got %s", v.Reason)
	}
}

func TestInspectQuery_TotalAndIdempotent(t *testing.T) {
	inputs := []string{
		"",
		";;;;",
		"select",
		strings.Repeat("select ", 100),
		"DROP TABLE transactions",
		"\x00\x01garbage\xff",
		"select * from transactions where business_id = 4 limit 10",
	}

	for _, in := range inputs {
		first := InspectQuery(in, 4)
		second := InspectQuery(in, 4)
		if first != second {
			t.Errorf("verdict not stable for %q: %+v vs %+v", in, first, second)
		}
	}
}

func TestInspectQuery_KeywordInsideIdentifierIsNotForbidden(t *testing.T) {
	// transaction_type must not trip the "transaction" keyword rule.
	sql := "select transaction_type from transactions where business_id = 4 limit 10"
	if v := InspectQuery(sql, 4); !v.Accepted {
		t.Errorf("identifier containing a forbidden word was rejected: %s (%s)", v.Reason, v.Detail)
	}
}
