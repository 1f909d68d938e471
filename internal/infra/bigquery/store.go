// Package bigquery holds the concrete BigQuery-backed implementations of
// the repository interfaces. All repositories share one client.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	businessesTable = "businesses"
	queryLogsTable  = "ai_query_logs"
	reportsTable    = "ai_reports"
)

// Store wraps a shared BigQuery client scoped to one project and dataset.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewStore creates the shared client. Close releases it.
func NewStore(ctx context.Context, projectID, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return &Store{client: client, project: projectID, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) *bigquery.Table {
	return s.client.DatasetInProject(s.project, s.dataset).Table(name)
}
