package notionexport

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jomei/notionapi"

	bq "github.com/dvloznov/finsight/internal/bigquery"
)

// narrativePreviewLimit caps the content mirrored into the Notion page;
// the full payload lives in GCS, not in Notion.
const narrativePreviewLimit = 1900

// ReportToNotionProperties converts a ReportRow to Notion properties.
// "Report ID" is the title property and the idempotency key.
func ReportToNotionProperties(r *bq.ReportRow) notionapi.Properties {
	props := notionapi.Properties{
		"Report ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: r.ReportID,
					},
				},
			},
		},
	}

	if r.Title != "" {
		props["Title"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: r.Title,
					},
				},
			},
		}
	}

	if r.ReportType != "" {
		props["Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(r.ReportType),
			},
		}
	}

	props["Business ID"] = notionapi.NumberProperty{
		Number: float64(r.BusinessID),
	}

	if r.PeriodStart.Valid {
		props["Period Start"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: nullDateToNotion(r.PeriodStart),
			},
		}
	}
	if r.PeriodEnd.Valid {
		props["Period End"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: nullDateToNotion(r.PeriodEnd),
			},
		}
	}

	if r.Content != "" {
		content := r.Content
		if len(content) > narrativePreviewLimit {
			content = content[:narrativePreviewLimit]
		}
		props["Content"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: content,
					},
				},
			},
		}
	}

	if r.ContentURI.Valid {
		props["Archive URI"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: r.ContentURI.StringVal,
					},
				},
			},
		}
	}

	if !r.CreatedTS.IsZero() {
		d := notionapi.Date(r.CreatedTS)
		props["Created"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &d,
			},
		}
	}

	return props
}

func nullDateToNotion(nd bigquery.NullDate) *notionapi.Date {
	d := notionapi.Date(time.Date(
		nd.Date.Year,
		time.Month(nd.Date.Month),
		nd.Date.Day,
		0, 0, 0, 0, time.UTC,
	))
	return &d
}
