package ports

import (
	"context"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

// DocumentRepository is the metadata store, the source of truth for documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Document, error)
	// Delete removes the record and returns it so its chunks can be cleaned up.
	Delete(ctx context.Context, tenantID, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status domain.DocumentStatus) error
}

// TextExtractor turns raw upload bytes plus a mime hint into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Embedder builds vectors for chunks and query text. ID identifies the embedding
// function; a collection created with one ID must never be written with another.
type Embedder interface {
	ID() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into bounded, overlapping passages.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex is the vector database collaborator. Embedding happens behind it.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	// Add is append-only and fails with domain.ErrConflict when an id already exists.
	Add(ctx context.Context, collection string, ids, texts []string) error
	Query(ctx context.Context, collection, text string, k int) ([]domain.ScoredChunk, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Existing(ctx context.Context, collection string, ids []string) ([]string, error)
}

// AnswerGenerator is the generative model provider: prompt in, text out.
type AnswerGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}

// CleanupJob describes chunk ids left behind in a collection.
type CleanupJob struct {
	TenantID string   `json:"tenant_id"`
	ChunkIDs []string `json:"chunk_ids"`
	Reason   string   `json:"reason"`
}

// CleanupQueue hands orphaned chunk ids to an asynchronous worker.
type CleanupQueue interface {
	PublishCleanup(ctx context.Context, job CleanupJob) error
	SubscribeCleanup(ctx context.Context, handler func(context.Context, CleanupJob) error) error
}

// Retrier runs store calls of the ingestion and deletion paths under a bounded retry policy.
type Retrier interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}

// PipelineMetrics records pipeline outcomes for operators.
type PipelineMetrics interface {
	RecordAnswer(outcome domain.AnswerOutcome)
	ObserveContextRunes(n int)
	ObserveIngestedChunks(n int)
	RecordIngestFailure(kind string)
	RecordCleanupFailure(reason string)
}
