package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/finsight/internal/bigquery"
)

// DailyBreakdown sums one day's transactions grouped by type and
// category. This is a fixed, parameterized query; no generated SQL is
// involved.
func (s *Store) DailyBreakdown(ctx context.Context, businessID int64, day civil.Date) ([]*bq.DailyBreakdownRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_type,
			category,
			SUM(amount) AS total
		FROM %s.transactions
		WHERE business_id = @business_id
		  AND transaction_date = @day
		GROUP BY transaction_type, category
		ORDER BY total DESC
	`, s.dataset))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: businessID},
		{Name: "day", Value: day.String()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("DailyBreakdown: query read: %w", err)
	}

	var rows []*bq.DailyBreakdownRow
	for {
		var r bq.DailyBreakdownRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DailyBreakdown: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
