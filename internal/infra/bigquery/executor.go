package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finsight/internal/insight"
)

// RunQuery executes one guard-accepted statement and returns the rows as
// generic maps. The statement references bare table names, so the store's
// dataset is installed as the default.
func (s *Store) RunQuery(ctx context.Context, sql string) ([]insight.Row, error) {
	q := s.client.Query(sql)
	q.DefaultProjectID = s.project
	q.DefaultDatasetID = s.dataset

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("RunQuery: query read: %w", err)
	}

	var rows []insight.Row
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("RunQuery: iter next: %w", err)
		}

		row := make(insight.Row, len(values))
		for k, v := range values {
			row[k] = v
		}
		rows = append(rows, row)
	}

	return rows, nil
}
