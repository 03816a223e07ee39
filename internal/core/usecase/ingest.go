package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

// IngestionPipeline chunks extracted text and writes it to the tenant collection.
// It runs in-process behind ports.IngestionBackend.
type IngestionPipeline struct {
	store   *TenantVectorStore
	chunker ports.Chunker
	ids     *ChunkIDGenerator
	queue   ports.CleanupQueue
	metrics ports.PipelineMetrics
}

func NewIngestionPipeline(
	store *TenantVectorStore,
	chunker ports.Chunker,
	ids *ChunkIDGenerator,
	queue ports.CleanupQueue,
	metrics ports.PipelineMetrics,
) *IngestionPipeline {
	if ids == nil {
		ids = NewChunkIDGenerator()
	}
	return &IngestionPipeline{
		store:   store,
		chunker: chunker,
		ids:     ids,
		queue:   queue,
		metrics: metricsOrNop(metrics),
	}
}

// Ingest returns every written chunk id in source order, or fails with nothing left behind
// except ids whose compensation also failed; those are queued for the cleanup worker.
func (p *IngestionPipeline) Ingest(ctx context.Context, req ports.IngestRequest) (ports.IngestResult, error) {
	result, err := p.ingest(ctx, req)
	if err != nil {
		p.metrics.RecordIngestFailure(errorKind(err))
		slog.Error("ingest_failed",
			"tenant_id", req.TenantID,
			"document_id", req.DocumentID,
			"error", err.Error(),
		)
		return ports.IngestResult{}, err
	}
	p.metrics.ObserveIngestedChunks(len(result.ChunkIDs))
	return result, nil
}

func (p *IngestionPipeline) ingest(ctx context.Context, req ports.IngestRequest) (ports.IngestResult, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return ports.IngestResult{}, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("tenant id is required"))
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		return ports.IngestResult{}, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("document id is required"))
	}

	chunks := p.split(req.RawText)
	if len(chunks) == 0 {
		coll, err := p.store.collectionFor(req.TenantID)
		if err != nil {
			return ports.IngestResult{}, err
		}
		return ports.IngestResult{Collection: coll, ChunkIDs: []string{}}, nil
	}

	coll, err := p.store.EnsureCollection(ctx, req.TenantID)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmbeddingMismatch) {
			return ports.IngestResult{}, err
		}
		return ports.IngestResult{}, domain.WrapError(domain.ErrProvider, "ingest", err)
	}

	ids := p.ids.Next(req.TenantID, len(chunks))
	written, err := p.store.Add(ctx, coll, ids, chunks)
	if err != nil {
		return ports.IngestResult{}, p.compensate(ctx, coll, ids, written, err)
	}

	slog.Info("ingest_completed",
		"tenant_id", req.TenantID,
		"document_id", req.DocumentID,
		"collection", coll.Name,
		"chunks", len(ids),
	)
	return ports.IngestResult{Collection: coll, ChunkIDs: ids}, nil
}

func (p *IngestionPipeline) split(raw string) []string {
	parts := p.chunker.Split(raw)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// compensate deletes the whole candidate id set: a failed batch may have been applied partially.
func (p *IngestionPipeline) compensate(
	ctx context.Context,
	coll domain.TenantCollection,
	ids, written []string,
	addErr error,
) error {
	kind := domain.ErrProvider
	if len(written) > 0 {
		kind = domain.ErrIngestionConsistency
	}

	if delErr := p.store.Delete(context.WithoutCancel(ctx), coll, ids); delErr != nil {
		enqueueOrphans(ctx, p.queue, ports.CleanupJob{
			TenantID: coll.TenantID,
			ChunkIDs: ids,
			Reason:   reasonIngestCompensation,
		})
		return domain.WrapError(kind, "ingest", fmt.Errorf("%w; compensating delete failed: %v", addErr, delErr))
	}
	return domain.WrapError(kind, "ingest", addErr)
}
