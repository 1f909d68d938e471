package notionexport

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	bq "github.com/dvloznov/finsight/internal/bigquery"
	"github.com/dvloznov/finsight/internal/logger"
)

// ExportReports mirrors the most recent reports of a business into a
// Notion database. Pages are keyed by report id, so re-running the
// export only creates pages for reports Notion has not seen yet.
func ExportReports(ctx context.Context, repo bq.ReportRepository, notionClient NotionService, notionDBID string, businessID int64, limit int, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Int64("business_id", businessID).
		Bool("dry_run", dryRun).
		Msg("Starting report export to Notion")

	reports, err := repo.ListReports(ctx, businessID, limit)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	log.Info().Int("report_count", len(reports)).Msg("Retrieved reports from BigQuery")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	existingReportIDs := make(map[string]bool)
	for _, page := range notionPages {
		if id := extractReportID(page); id != "" {
			existingReportIDs[id] = true
		}
	}

	var created, skipped int
	for _, r := range reports {
		if existingReportIDs[r.ReportID] {
			skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("report_id", r.ReportID).
				Msg("[DRY RUN] Would create Notion page")
			created++
			continue
		}

		props := ReportToNotionProperties(r)
		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("report_id", r.ReportID).
				Msg("Failed to create Notion page")
			continue
		}
		log.Info().
			Str("report_id", r.ReportID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("total", len(reports)).
		Msg("Report export completed")

	return nil
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractReportID reads the "Report ID" title property from a page.
// Returns empty string if not found.
func extractReportID(page notionapi.Page) string {
	if prop, ok := page.Properties["Report ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
