package main

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pdfqa/internal/handlers"
	apihttp "pdfqa/internal/http"
)

//go:embed index.html
var indexHTML string

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr         string
		docsDir      string
		drainTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question answering API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ingest, err := a.ingestPipeline()
			if err != nil {
				return err
			}
			ingestHandler := handlers.NewIngestHandler(ingest, docsDir)

			router := apihttp.NewRouter(&apihttp.Deps{
				Asker:          a.queryPipeline(),
				Ingest:         ingestHandler,
				Runs:           a.runs,
				Index:          a.handle,
				CollectionName: a.cfg.CollectionName,
				IndexHTML:      indexHTML,
			})

			if addr == "" {
				addr = ":" + a.cfg.APIPort
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := withSignals(cmd.Context())
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Starting API server", "addr", addr, "collection", a.cfg.CollectionName, "backend", a.cfg.IndexBackend)
				a.logger.Debug("Model configuration", "base_url", a.cfg.OpenAIBaseURL, "model", a.cfg.ChatModel)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			// A background run started over HTTP records its final status before the ledger closes.
			if !ingestHandler.WaitTimeout(drainTimeout) {
				a.logger.Warn("Background ingestion still running at exit; its ledger status will stay running",
					"drain_timeout", drainTimeout)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":\" + API_PORT)")
	cmd.Flags().StringVar(&docsDir, "docs", defaultDocsDir, "directory ingested by POST /api/ingest without a dir")
	cmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 5*time.Minute,
		"how long shutdown waits for a running ingestion before closing the ledger (0 exits at once)")
	return cmd
}
