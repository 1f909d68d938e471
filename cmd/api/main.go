package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finsight/internal/api/handlers"
	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/archive"
	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/config"
	infraBQ "github.com/dvloznov/finsight/internal/infra/bigquery"
	"github.com/dvloznov/finsight/internal/insight"
	"github.com/dvloznov/finsight/internal/llm"
	"github.com/dvloznov/finsight/internal/logger"
)

const auditBufferSize = 256

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	gemini, err := llm.NewGemini(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	// Report archiving is optional; without a bucket the full payload
	// stays inline in BigQuery.
	var archiver audit.Archiver
	if cfg.ReportBucket != "" {
		gcs, err := archive.NewGCSArchive(ctx, cfg.ReportBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create report archive")
		}
		defer gcs.Close()
		archiver = gcs
	} else {
		log.Warn().Msg("No report bucket configured - report archiving disabled")
	}

	recorder := audit.NewRecorder(auditBufferSize, store, store, archiver, log)
	recorderCtx, cancelRecorder := context.WithCancel(ctx)
	defer cancelRecorder()
	recorder.Start(recorderCtx)

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

	insightsHandler := handlers.NewInsightsHandler(svc, log)
	reportsHandler := handlers.NewReportsHandler(store, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/ai/ask", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			insightsHandler.Ask(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ai/daily-summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			insightsHandler.DailySummary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.ListReports(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check stays outside the tenant gate.
	root := http.NewServeMux()
	root.HandleFunc("/healthz", handlers.Health)
	root.Handle("/api/", middleware.TenantAccess(mux))

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(root),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Flush buffered audit records before exiting.
	recorder.Close()

	log.Info().Msg("Server exited")
}
