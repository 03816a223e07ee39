package ports

import (
	"context"
	"io"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

// IngestRequest is the already-extracted input of one ingestion.
type IngestRequest struct {
	TenantID   string
	DocumentID string
	RawText    string
}

type IngestResult struct {
	Collection domain.TenantCollection
	ChunkIDs   []string
}

// IngestionBackend chunks and indexes extracted text for a tenant and returns the written chunk ids.
type IngestionBackend interface {
	Ingest(ctx context.Context, req IngestRequest) (IngestResult, error)
}

type UploadRequest struct {
	TenantID string
	Filename string
	MimeType string
	Body     io.Reader
}

type UploadResult struct {
	Document *domain.Document `json:"document"`
}

// DocumentService is the inbound contract for document management.
type DocumentService interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	List(ctx context.Context, tenantID string) ([]domain.Document, error)
	Get(ctx context.Context, tenantID, documentID string) (*domain.Document, error)
	Delete(ctx context.Context, tenantID, documentID string) (int, error)
	Reconcile(ctx context.Context, tenantID, documentID string) (*domain.Document, error)
}

type AskRequest struct {
	TenantID   string
	TenantName string
	Question   string
	K          int
}

// QueryService answers tenant questions. It only fails on malformed input.
type QueryService interface {
	Ask(ctx context.Context, req AskRequest) (*domain.Answer, error)
}

// ChunkCleaner removes chunk ids from a tenant collection on a best-effort basis.
type ChunkCleaner interface {
	Cleanup(ctx context.Context, tenantID string, chunkIDs []string) int
}
