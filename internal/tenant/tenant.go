package tenant

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Context identifies the tenant a request is allowed to read.
// It is resolved by the auth layer in front of this service and
// threaded, unchanged, through the whole question pipeline.
type Context struct {
	TenantID int64
	Period   *Period
}

// Period is an optional inclusive date range attached to a question.
type Period struct {
	Start civil.Date
	End   civil.Date
}

// New builds a tenant context. TenantID must be positive.
func New(tenantID int64, period *Period) (Context, error) {
	if tenantID <= 0 {
		return Context{}, fmt.Errorf("tenant: invalid tenant id %d", tenantID)
	}
	return Context{TenantID: tenantID, Period: period}, nil
}

// ParsePeriod parses an optional start/end pair of ISO dates (YYYY-MM-DD).
// Both must be present and valid to produce a period; anything else is
// treated as "no period" rather than an error, matching how the ask
// endpoint treats dates as an optional hint.
func ParsePeriod(startStr, endStr string) *Period {
	if startStr == "" || endStr == "" {
		return nil
	}

	start, err := civil.ParseDate(startStr)
	if err != nil {
		return nil
	}
	end, err := civil.ParseDate(endStr)
	if err != nil {
		return nil
	}
	if end.Before(start) {
		return nil
	}

	return &Period{Start: start, End: end}
}

// Label renders a human-readable description of the period for prompts,
// report titles and API responses.
func (p *Period) Label() string {
	if p == nil {
		return "All time"
	}
	return fmt.Sprintf("From %s to %s", p.Start.String(), p.End.String())
}

// PeriodLabel is a nil-safe helper for contexts without a period.
func (c Context) PeriodLabel() string {
	return c.Period.Label()
}
