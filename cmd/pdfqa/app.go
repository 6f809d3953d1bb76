package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"pdfqa/internal/config"
	"pdfqa/internal/index"
	"pdfqa/internal/indexer"
	"pdfqa/internal/llm"
	"pdfqa/internal/loader"
	"pdfqa/internal/rag"
	"pdfqa/internal/storage"
	"pdfqa/internal/vectorstore"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db     *sql.DB
	runs   *storage.RunRepo
	handle *index.Handle
	model  *llm.Client
}

// loadApp reads configuration, sets up logging and opens the run ledger.
// The index is not contacted until first use. Commands that call the model API
// set needModel so a missing key fails before any work starts.
func loadApp(opts *rootOptions, needModel bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if needModel {
		if err := cfg.RequireCredentials(); err != nil {
			return nil, err
		}
	}
	logger := setupLogging(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("Run ledger opened", "path", cfg.DBPath)

	embedder := llm.NewEmbeddingsClient(llm.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.EmbeddingModel,
		Timeout:    cfg.ModelTimeout,
		MaxRetries: cfg.ModelMaxRetries,
	}, cfg.IndexVectorSize)

	model := llm.NewClient(llm.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.ChatModel,
		Timeout:    cfg.ModelTimeout,
		MaxRetries: cfg.ModelMaxRetries,
	})

	handle := index.NewHandle(index.Connect(
		func() (vectorstore.VectorStore, error) {
			return vectorstore.Open(cfg.IndexBackend, cfg.IndexURL)
		},
		embedder,
		index.Options{
			Collection: cfg.CollectionName,
			VectorSize: cfg.IndexVectorSize,
			Timeout:    cfg.IndexTimeout,
		},
		logger,
	))

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		runs:   storage.NewRunRepo(db),
		handle: handle,
		model:  model,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.handle.Close(), a.db.Close())
}

func (a *app) ingestPipeline(opts ...indexer.Option) (*indexer.Pipeline, error) {
	splitter, err := indexer.NewSplitter(a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.RequirePDFLicense(); err != nil {
		return nil, err
	}
	var pdf loader.Extractor
	if slices.Contains(a.cfg.LoaderExtensions, ".pdf") {
		ex, err := loader.NewPDFExtractor(a.cfg.UnidocLicenseKey)
		if err != nil {
			return nil, err
		}
		pdf = ex
	}
	registry, err := loader.NewRegistry(a.cfg.LoaderExtensions, loader.DefaultExtractors(pdf))
	if err != nil {
		return nil, err
	}

	opts = append([]indexer.Option{
		indexer.WithBatchSize(a.cfg.BatchSize),
		indexer.WithConcurrency(a.cfg.IngestConcurrency),
		indexer.WithRateLimit(a.cfg.IngestRateLimit),
		indexer.WithIndexIdentity(a.cfg.EmbeddingModel, a.cfg.CollectionName),
		indexer.WithLogger(a.logger),
	}, opts...)

	return indexer.NewPipeline(loader.NewDirectoryLoader(registry, a.logger), a.handle, splitter, a.runs, opts...), nil
}

func (a *app) queryPipeline() *rag.Pipeline {
	return rag.NewPipeline(a.handle, a.model, a.cfg.RetrievalK, a.logger)
}

// withSignals returns a context cancelled on interrupt or termination.
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
