package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/finsight/internal/bigquery"
)

// InsertReport persists one generated report.
func (s *Store) InsertReport(ctx context.Context, row *bq.ReportRow) error {
	if row == nil {
		return nil
	}

	inserter := s.table(reportsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertReport: inserting row: %w", err)
	}

	return nil
}

// ListReports retrieves the most recent reports for a business, newest
// first.
func (s *Store) ListReports(ctx context.Context, businessID int64, limit int) ([]*bq.ReportRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			report_id,
			user_id,
			business_id,
			query_id,
			title,
			report_type,
			period_start,
			period_end,
			content,
			content_uri,
			created_ts
		FROM %s.%s
		WHERE business_id = @business_id
		ORDER BY created_ts DESC
		LIMIT @row_limit
	`, s.dataset, reportsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: businessID},
		{Name: "row_limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListReports: query read: %w", err)
	}

	var rows []*bq.ReportRow
	for {
		var r bq.ReportRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListReports: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
