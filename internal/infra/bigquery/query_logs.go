package bigquery

import (
	"context"
	"fmt"

	bq "github.com/dvloznov/finsight/internal/bigquery"
)

// InsertQueryLog appends one audit row to the query log table.
func (s *Store) InsertQueryLog(ctx context.Context, row *bq.QueryLogRow) error {
	if row == nil {
		return nil
	}

	inserter := s.table(queryLogsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertQueryLog: inserting row: %w", err)
	}

	return nil
}
