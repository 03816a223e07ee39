package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/tenant-rag/internal/config"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
	"github.com/kirillkom/tenant-rag/internal/core/usecase"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/embedding/lexical"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/vector/memory"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Repo          ports.DocumentRepository
	Store         *usecase.TenantVectorStore
	Docs          *usecase.DocumentUseCase
	Query         *usecase.QueryUseCase
	Cleaner       *usecase.DeletionCoordinator
	CleanupWorker *usecase.CleanupWorker
	// Queue is nil when CLEANUP_QUEUE_ENABLED is false.
	Queue *nats.Queue

	closeFn func()
}

// New wires every backend once. metrics may be nil.
func New(ctx context.Context, cfg config.Config, metrics ports.PipelineMetrics) (*App, error) {
	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	var queue *nats.Queue
	var cleanupQueue ports.CleanupQueue
	if cfg.CleanupQueueEnabled {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSCleanupSubject, nats.Options{
			ResilienceExecutor: executor,
			MaxDeliveries:      cfg.CleanupMaxDeliveries,
			RedeliverWait:      cfg.CleanupRedeliverDelay,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cleanup queue: %w", err)
		}
		cleanupQueue = queue
	} else {
		slog.Warn("cleanup_queue_disabled", "effect", "orphaned chunks are only logged")
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder, dim, err := newEmbedder(cfg, ollamaClient)
	if err != nil {
		closeAll(db, queue)
		return nil, err
	}
	index, err := newVectorIndex(cfg, embedder, dim)
	if err != nil {
		closeAll(db, queue)
		return nil, err
	}

	store := usecase.NewTenantVectorStore(index, cfg.QdrantCollectionPrefix, cfg.AddBatchSize, executor)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewMux(pdf.NewExtractor(), plaintext.NewExtractor())

	cleaner := usecase.NewDeletionCoordinator(store, cleanupQueue, metrics)
	pipeline := usecase.NewIngestionPipeline(store, chunker, usecase.NewChunkIDGenerator(), cleanupQueue, metrics)
	docs := usecase.NewDocumentUseCase(repo, textExtractor, pipeline, cleaner, store, cfg.MaxUploadBytes)

	retriever := usecase.NewRetrievalOrchestrator(store, usecase.RetrievalOptions{
		TopK:             cfg.RAGTopK,
		ContextChunks:    cfg.RAGContextChunks,
		ContextBudget:    cfg.RAGContextBudget,
		MaxQuestionRunes: cfg.RAGMaxQuestionChars,
	})
	synthesizer := usecase.NewAnswerSynthesizer(ollama.NewGenerator(ollamaClient), usecase.AnswerTexts{
		Refusal:       cfg.RefusalAnswer,
		NoInformation: cfg.NoInformationAnswer,
		Apology:       cfg.ApologyAnswer,
	})
	query := usecase.NewQueryUseCase(retriever, synthesizer, metrics)

	slog.Info("bootstrap_ready",
		"metadata_driver", cfg.MetadataDriver,
		"vector_backend", cfg.VectorBackend,
		"embedder", embedder.ID(),
		"cleanup_queue", cfg.CleanupQueueEnabled,
	)

	return &App{
		Config:        cfg,
		Repo:          repo,
		Store:         store,
		Docs:          docs,
		Query:         query,
		Cleaner:       cleaner,
		CleanupWorker: usecase.NewCleanupWorker(store),
		Queue:         queue,

		closeFn: func() {
			closeAll(db, queue)
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeAll(db *sql.DB, queue *nats.Queue) {
	if queue != nil {
		queue.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}

func openRepository(ctx context.Context, cfg config.Config) (*sql.DB, ports.DocumentRepository, error) {
	switch cfg.MetadataDriver {
	case "postgres", "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return db, repo, nil
	case "sqlite":
		db, err := sqlite.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		repo := sqlite.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return db, repo, nil
	default:
		return nil, nil, fmt.Errorf("unknown METADATA_DRIVER %q", cfg.MetadataDriver)
	}
}

func newEmbedder(cfg config.Config, client *ollama.Client) (ports.Embedder, int, error) {
	switch cfg.Embedder {
	case "ollama", "":
		return ollama.NewEmbedder(client, cfg.EmbeddingDim), cfg.EmbeddingDim, nil
	case "lexical":
		e := lexical.New(cfg.EmbeddingDim)
		return e, e.Dimensions(), nil
	default:
		return nil, 0, fmt.Errorf("unknown EMBEDDER %q", cfg.Embedder)
	}
}

func newVectorIndex(cfg config.Config, embedder ports.Embedder, dim int) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "qdrant", "":
		return qdrant.New(cfg.QdrantURL, embedder, dim), nil
	case "memory":
		return memory.New(embedder), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		RetryMaxJitter:      cfg.RetryMaxJitter,

		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}
