// Package app wires configuration into the running set of doclens components.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/doclens/internal/config"
	"github.com/timmy/doclens/internal/extract"
	"github.com/timmy/doclens/internal/logger"
	"github.com/timmy/doclens/internal/progress"
	"github.com/timmy/doclens/internal/repository"
	"github.com/timmy/doclens/internal/service"
	"github.com/timmy/doclens/internal/storage"
)

// App holds the components shared by the HTTP server and the CLI.
type App struct {
	Config     *config.Config
	Tracker    *progress.Tracker
	Dispatcher *service.Dispatcher
	Status     *service.StatusService
	Chats      *service.ChatService

	qdrant *repository.QdrantRepository
}

// New connects to the database, vector store and object storage and builds the services.
// The dispatcher is created but not started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	objectStorage, err := storage.NewStorage(StorageConfig(&cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if s3Storage, ok := objectStorage.(*storage.S3Storage); ok {
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize qdrant repository: %w", err)
	}
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		_ = qdrantRepo.Close()
		return nil, fmt.Errorf("failed to ensure qdrant collection: %w", err)
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    cfg.Embedding.Timeout,
	})
	llmService := service.NewLLMService(&service.LLMConfig{
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	})
	index := service.NewRetrievalIndex(embeddingService, qdrantRepo, llmService, &service.RetrievalConfig{
		ChunkSize:      cfg.Chunking.Size,
		ChunkOverlap:   cfg.Chunking.Overlap,
		UpsertParallel: cfg.Ingest.UpsertParallel,
	})

	documents := repository.NewDocumentRepository(db)
	tracker := progress.NewTracker()
	worker := service.NewIngestWorker(documents, objectStorage, extract.NewRegistry(), index, tracker, cfg.Ingest.JobTimeout)
	dispatcher, err := service.NewDispatcher(documents, objectStorage, tracker, worker, &service.DispatcherConfig{
		Workers:    cfg.Ingest.Workers,
		QueueSize:  cfg.Ingest.QueueSize,
		StaleAfter: StaleAfter(cfg.Ingest.JobTimeout),
	})
	if err != nil {
		_ = qdrantRepo.Close()
		return nil, err
	}

	logger.CtxInfo(ctx, "[App] Initialized: storage=%s, database=%s, collection=%s, workers=%d",
		cfg.Storage.Type, cfg.Database.Driver, cfg.Qdrant.Collection, cfg.Ingest.Workers)

	return &App{
		Config:     cfg,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Status:     service.NewStatusService(documents, tracker),
		Chats:      service.NewChatService(index, repository.NewChatRepository(db)),
		qdrant:     qdrantRepo,
	}, nil
}

// StorageConfig maps the storage section of the config file onto a storage backend config.
func StorageConfig(cfg *config.StorageConfig) *storage.Config {
	return &storage.Config{
		Type:     storage.StorageType(cfg.Type),
		LocalDir: cfg.LocalDir,
		S3: storage.S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
		},
	}
}

// LoggerConfig maps the log section of the config file onto a logger config.
func LoggerConfig(cfg *config.LogConfig) *logger.Config {
	return &logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		ServiceName: "doclens",
		File:        cfg.File,
		FileOnly:    cfg.FileOnly,
		MaxSizeMB:   cfg.MaxSizeMB,
		MaxBackups:  cfg.MaxBackups,
		MaxAgeDays:  cfg.MaxAgeDays,
		Compress:    cfg.Compress,
	}
}

// StaleAfter is how long a document may sit in processing before recovery
// fails it. Workers give up after jobTimeout, so anything older is abandoned.
func StaleAfter(jobTimeout time.Duration) time.Duration {
	return jobTimeout + time.Minute
}

// StartIngestion starts the dispatcher and the progress janitor. When
// recoverOnStart is set it also requeues interrupted work and keeps sweeping
// for abandoned processing records.
func (a *App) StartIngestion(ctx context.Context, recoverOnStart bool) error {
	a.Dispatcher.Start(ctx)
	go a.Tracker.RunJanitor(ctx, a.Config.Progress.SweepInterval, a.Config.Progress.Retention)

	if !recoverOnStart {
		return nil
	}
	requeued, failed, err := a.Dispatcher.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted documents: %w", err)
	}
	go a.Dispatcher.RunStaleSweep(ctx, a.Config.Progress.SweepInterval)
	logger.CtxInfo(ctx, "[App] Recovery finished: requeued=%d, failed=%d", requeued, failed)
	return nil
}

// Close stops the dispatcher within grace and releases connections.
func (a *App) Close(grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	var errs []error
	if err := a.Dispatcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher stop: %w", err))
	}
	if err := a.qdrant.Close(); err != nil {
		errs = append(errs, fmt.Errorf("qdrant close: %w", err))
	}
	return errors.Join(errs...)
}
