package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

const defaultMaxUploadBytes = 20 << 20

// DocumentUseCase manages tenant documents. The metadata store is the source of truth:
// a document is persisted only after its chunk set is written, and removed before its chunks.
type DocumentUseCase struct {
	repo           ports.DocumentRepository
	extractor      ports.TextExtractor
	ingest         ports.IngestionBackend
	cleaner        *DeletionCoordinator
	store          *TenantVectorStore
	maxUploadBytes int64
	now            func() time.Time
}

func NewDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	ingest ports.IngestionBackend,
	cleaner *DeletionCoordinator,
	store *TenantVectorStore,
	maxUploadBytes int64,
) *DocumentUseCase {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &DocumentUseCase{
		repo:           repo,
		extractor:      extractor,
		ingest:         ingest,
		cleaner:        cleaner,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

func (uc *DocumentUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	tenantID, err := requireTenant("upload", req.TenantID)
	if err != nil {
		return nil, err
	}
	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}
	sourceType, ok := domain.SourceTypeFromMime(req.MimeType)
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedMedia, "upload", fmt.Errorf("mime type %q", req.MimeType))
	}
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file body is required"))
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, uc.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > uc.maxUploadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("file exceeds %d bytes", uc.maxUploadBytes))
	}

	text, err := uc.extractor.Extract(ctx, req.MimeType, data)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	docID := uuid.NewString()
	result, err := uc.ingest.Ingest(ctx, ports.IngestRequest{
		TenantID:   tenantID,
		DocumentID: docID,
		RawText:    text,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest document: %w", err)
	}

	doc := &domain.Document{
		ID:         docID,
		TenantID:   tenantID,
		Filename:   filename,
		SourceType: sourceType,
		ChunkIDs:   result.ChunkIDs,
		Status:     domain.StatusReady,
		UploadedAt: uc.now().UTC(),
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		uc.cleaner.cleanup(context.WithoutCancel(ctx), tenantID, result.ChunkIDs, reasonMetadataSaga)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	slog.Info("document_uploaded",
		"tenant_id", tenantID,
		"document_id", doc.ID,
		"source_type", string(sourceType),
		"chunks", len(doc.ChunkIDs),
	)
	return &ports.UploadResult{Document: doc}, nil
}

func (uc *DocumentUseCase) List(ctx context.Context, tenantID string) ([]domain.Document, error) {
	tenantID, err := requireTenant("list documents", tenantID)
	if err != nil {
		return nil, err
	}
	docs, err := uc.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (uc *DocumentUseCase) Get(ctx context.Context, tenantID, documentID string) (*domain.Document, error) {
	tenantID, err := requireTenant("get document", tenantID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.repo.GetByID(ctx, tenantID, strings.TrimSpace(documentID))
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes the metadata record first, then cleans up its chunks on a best-effort basis.
func (uc *DocumentUseCase) Delete(ctx context.Context, tenantID, documentID string) (int, error) {
	tenantID, err := requireTenant("delete document", tenantID)
	if err != nil {
		return 0, err
	}
	doc, err := uc.repo.Delete(ctx, tenantID, strings.TrimSpace(documentID))
	if err != nil {
		return 0, fmt.Errorf("delete document metadata: %w", err)
	}
	removed := uc.cleaner.Cleanup(ctx, tenantID, doc.ChunkIDs)
	slog.Info("document_deleted",
		"tenant_id", tenantID,
		"document_id", doc.ID,
		"chunks", len(doc.ChunkIDs),
		"removed", removed,
	)
	return removed, nil
}

// Reconcile checks that every chunk of the document is still present and records the result.
func (uc *DocumentUseCase) Reconcile(ctx context.Context, tenantID, documentID string) (*domain.Document, error) {
	tenantID, err := requireTenant("reconcile document", tenantID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.repo.GetByID(ctx, tenantID, strings.TrimSpace(documentID))
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	missing, err := uc.missingChunks(ctx, tenantID, doc.ChunkIDs)
	if err != nil {
		return nil, fmt.Errorf("reconcile chunks: %w", err)
	}
	status := domain.StatusReady
	if missing > 0 {
		status = domain.StatusDegraded
	}
	if status != doc.Status {
		if err := uc.repo.UpdateStatus(ctx, tenantID, doc.ID, status); err != nil {
			return nil, fmt.Errorf("update document status: %w", err)
		}
		slog.Warn("document_status_changed",
			"tenant_id", tenantID,
			"document_id", doc.ID,
			"status", string(status),
			"missing_chunks", missing,
		)
		doc.Status = status
	}
	return doc, nil
}

func (uc *DocumentUseCase) missingChunks(ctx context.Context, tenantID string, chunkIDs []string) (int, error) {
	ids := uniqueNonBlank(chunkIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	coll, err := uc.store.Collection(ctx, tenantID)
	if domain.IsKind(err, domain.ErrNotFound) {
		return len(ids), nil
	}
	if err != nil {
		return 0, err
	}
	found, err := uc.store.Existing(ctx, coll, ids)
	if err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	missing := 0
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing++
		}
	}
	return missing, nil
}

func requireTenant(operation, tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, operation, errors.New("tenant id is required"))
	}
	return tenantID, nil
}
