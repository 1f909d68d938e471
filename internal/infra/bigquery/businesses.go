package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/finsight/internal/bigquery"
)

// GetBusiness retrieves a business by id. Returns (nil, nil) when no such
// business exists; the caller decides whether that is an error.
func (s *Store) GetBusiness(ctx context.Context, businessID int64) (*bq.BusinessRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			id_business,
			name,
			currency,
			created_ts
		FROM %s.%s
		WHERE id_business = @business_id
		LIMIT 1
	`, s.dataset, businessesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: businessID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBusiness: query read: %w", err)
	}

	var row bq.BusinessRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBusiness: iter next: %w", err)
	}

	return &row, nil
}
