package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fingest/internal/api"
	"github.com/dgallion1/fingest/internal/app"
	"github.com/dgallion1/fingest/internal/config"
	"github.com/dgallion1/fingest/internal/pipeline"
	"github.com/dgallion1/fingest/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fingest HTTP API",
	Long: `Start the HTTP API with an asynchronous ingest queue.

FINGEST_API_KEY must be set; every /api route expects it as a Bearer token.

The server provides:
  - POST /api/ingest, /api/ingest/batch       queue PDFs for extraction
  - GET  /api/ingest/{jobID}/status           poll a job
  - GET  /api/documents[/{docID}[/report]]    browse cached reports
  - POST /api/context, /api/ask               question context and answers
  - POST /api/search                          top-k matching chunks
  - GET  /api/stats/llm                       model latency statistics

Examples:
  FINGEST_API_KEY=secret fingest serve --db fingest.db
  FINGEST_API_KEY=secret fingest serve --port 9000 --worker-count 4`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("port", "8090", "port to listen on")
	f.String("db", "", "SQLite cache path (default: in-memory)")
	f.Int("worker-count", 2, "documents processed concurrently")
	f.Int("page-workers", 1, "pages extracted concurrently per document")
	f.Bool("ocr", true, "use image recognition for complex tables when available")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	log := newLogger(os.Stdout, cfg.LogLevel, true)

	if cfg.DBPath == "" {
		log.Warn("no db_path configured, cached reports are lost on exit")
	}
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	log.Info("recognition engine", "available", a.Engine.Available())

	orch := pipeline.NewOrchestrator(cfg, a.Agent, st, a.Opener(), log)
	orch.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewServer(orch, a, log, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("starting fingest", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return err
	}
	<-done
	return nil
}
