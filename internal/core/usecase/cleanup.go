package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

const (
	reasonIngestCompensation = "ingest_compensation_failed"
	reasonMetadataSaga       = "metadata_write_failed"
	reasonDeleteCleanup      = "delete_cleanup_failed"
)

// enqueueOrphans hands chunk ids the caller could not delete to the cleanup queue.
// A nil queue only logs them.
func enqueueOrphans(ctx context.Context, queue ports.CleanupQueue, job ports.CleanupJob) {
	if len(job.ChunkIDs) == 0 {
		return
	}
	if queue == nil {
		slog.Error("orphan_chunks_unqueued",
			"tenant_id", job.TenantID,
			"reason", job.Reason,
			"chunk_ids", job.ChunkIDs,
		)
		return
	}
	if err := queue.PublishCleanup(context.WithoutCancel(ctx), job); err != nil {
		slog.Error("cleanup_enqueue_failed",
			"tenant_id", job.TenantID,
			"reason", job.Reason,
			"chunks", len(job.ChunkIDs),
			"error", err.Error(),
		)
		return
	}
	slog.Info("cleanup_enqueued", "tenant_id", job.TenantID, "reason", job.Reason, "chunks", len(job.ChunkIDs))
}

// CleanupWorker deletes orphaned chunks delivered by the cleanup queue.
type CleanupWorker struct {
	store *TenantVectorStore
}

func NewCleanupWorker(store *TenantVectorStore) *CleanupWorker {
	return &CleanupWorker{store: store}
}

// Handle returns an error only when the job should be redelivered.
func (w *CleanupWorker) Handle(ctx context.Context, job ports.CleanupJob) error {
	ids := uniqueNonBlank(job.ChunkIDs)
	if len(ids) == 0 {
		return nil
	}
	coll, err := w.store.Collection(ctx, job.TenantID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) || domain.IsKind(err, domain.ErrInvalidInput) {
			slog.Info("cleanup_job_skipped", "tenant_id", job.TenantID, "reason", job.Reason, "error", err.Error())
			return nil
		}
		return err
	}
	if err := w.store.Delete(ctx, coll, ids); err != nil {
		return err
	}
	slog.Info("cleanup_job_done", "tenant_id", job.TenantID, "reason", job.Reason, "chunks", len(ids))
	return nil
}
