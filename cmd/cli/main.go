package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/config"
	infraBQ "github.com/dvloznov/finsight/internal/infra/bigquery"
	"github.com/dvloznov/finsight/internal/insight"
	"github.com/dvloznov/finsight/internal/llm"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/notionexport"
	"github.com/dvloznov/finsight/internal/tenant"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(log)
	case "daily-summary":
		runDailySummary(log)
	case "export-notion":
		runExportNotion(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FinSight CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ask            Ask a natural-language question about a business")
	fmt.Println("  daily-summary  Summarize one day's transactions")
	fmt.Println("  export-notion  Export recent reports to a Notion database")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// newService wires the full pipeline for one CLI invocation. The audit
// recorder is returned so the caller can drain it before exiting.
func newService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*insight.Service, *infraBQ.Store, *audit.Recorder, error) {
	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		return nil, nil, nil, err
	}

	gemini, err := llm.NewGemini(ctx, cfg.GeminiModel)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	recorder := audit.NewRecorder(16, store, store, nil, log)
	recorder.Start(ctx)

	svc := insight.NewService(insight.Deps{
		LLM:        gemini,
		Runner:     store,
		Businesses: store,
		Stats:      store,
		Audit:      recorder,
		ModelName:  cfg.GeminiModel,
		LLMTimeout: cfg.LLMTimeout,
		Log:        log,
	})

	return svc, store, recorder, nil
}

func runAsk(log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	businessID := fs.Int64("business-id", 0, "Business to query")
	userID := fs.Int64("user-id", 0, "Acting user id")
	question := fs.String("question", "", "Natural-language question")
	start := fs.String("start", "", "Period start (YYYY-MM-DD)")
	end := fs.String("end", "", "Period end (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	if *businessID <= 0 || *userID <= 0 || *question == "" {
		log.Fatal().Msg("Usage: cli ask -business-id N -user-id N -question TEXT [-start DATE -end DATE]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, store, recorder, err := newService(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()

	tc, err := tenant.New(*businessID, tenant.ParsePeriod(*start, *end))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid business id")
	}

	res, err := svc.Ask(ctx, insight.AskRequest{
		Tenant:   tc,
		UserID:   *userID,
		Question: *question,
	})
	recorder.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Question failed")
	}

	fmt.Printf("\n%s\n", res.Narrative)
	fmt.Printf("\nSQL: %s\n", res.SQL)
	fmt.Printf("Rows: %d  Report: %s\n", res.Normalized.Summary.RowCount, res.ReportID)
}

func runDailySummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("daily-summary", flag.ExitOnError)
	businessID := fs.Int64("business-id", 0, "Business to summarize")
	userID := fs.Int64("user-id", 0, "Acting user id")
	dateStr := fs.String("date", "", "Day to summarize (YYYY-MM-DD, defaults to today)")
	fs.Parse(os.Args[2:])

	if *businessID <= 0 || *userID <= 0 {
		log.Fatal().Msg("Usage: cli daily-summary -business-id N -user-id N [-date DATE]")
	}

	day := civil.DateOf(time.Now())
	if *dateStr != "" {
		parsed, err := civil.ParseDate(*dateStr)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -date")
		}
		day = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, store, recorder, err := newService(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()

	tc, err := tenant.New(*businessID, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid business id")
	}

	res, err := svc.DailySummary(ctx, tc, *userID, day)
	recorder.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Summary failed")
	}

	fmt.Printf("\n=== %s ===\n%s\n", res.Day, res.Narrative)
	for _, row := range res.Breakdown {
		if row.Total == nil {
			continue
		}
		fmt.Printf("  %-8s %-20s %s\n", row.TransactionType, row.Category, row.Total.FloatString(2))
	}
}

func runExportNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("export-notion", flag.ExitOnError)
	businessID := fs.Int64("business-id", 0, "Business whose reports to export")
	limit := fs.Int("limit", 50, "Maximum number of recent reports")
	dryRun := fs.Bool("dry-run", false, "Log what would be exported without writing")
	fs.Parse(os.Args[2:])

	if *businessID <= 0 {
		log.Fatal().Msg("Usage: cli export-notion -business-id N [-limit N] [-dry-run]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_REPORTS_DB_ID are required for export")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	notionClient := notionexport.NewNotionClient(cfg.NotionToken)
	if err := notionexport.ExportReports(ctx, store, notionClient, cfg.NotionDatabaseID, *businessID, *limit, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Println("Export completed successfully.")
}
