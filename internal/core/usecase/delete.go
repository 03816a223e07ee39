package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

// DeletionCoordinator removes chunk vectors after their metadata is gone. Failures are
// logged, counted and queued for the cleanup worker, never returned.
type DeletionCoordinator struct {
	store   *TenantVectorStore
	queue   ports.CleanupQueue
	metrics ports.PipelineMetrics
}

func NewDeletionCoordinator(store *TenantVectorStore, queue ports.CleanupQueue, metrics ports.PipelineMetrics) *DeletionCoordinator {
	return &DeletionCoordinator{
		store:   store,
		queue:   queue,
		metrics: metricsOrNop(metrics),
	}
}

func (d *DeletionCoordinator) Cleanup(ctx context.Context, tenantID string, chunkIDs []string) int {
	return d.cleanup(ctx, tenantID, chunkIDs, reasonDeleteCleanup)
}

func (d *DeletionCoordinator) cleanup(ctx context.Context, tenantID string, chunkIDs []string, reason string) int {
	ids := uniqueNonBlank(chunkIDs)
	if len(ids) == 0 {
		return 0
	}

	coll, err := d.store.Collection(ctx, tenantID)
	if domain.IsKind(err, domain.ErrNotFound) || domain.IsKind(err, domain.ErrInvalidInput) {
		return 0
	}
	if err == nil {
		err = d.store.Delete(ctx, coll, ids)
	}
	if err != nil {
		slog.Error("chunk_cleanup_failed",
			"tenant_id", tenantID,
			"reason", reason,
			"chunks", len(ids),
			"error", err.Error(),
		)
		d.metrics.RecordCleanupFailure(reason)
		enqueueOrphans(ctx, d.queue, ports.CleanupJob{TenantID: tenantID, ChunkIDs: ids, Reason: reason})
		return 0
	}
	return len(ids)
}
