package usecase

import (
	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

type nopMetrics struct{}

func (nopMetrics) RecordAnswer(domain.AnswerOutcome) {}
func (nopMetrics) ObserveContextRunes(int)           {}
func (nopMetrics) ObserveIngestedChunks(int)         {}
func (nopMetrics) RecordIngestFailure(string)        {}
func (nopMetrics) RecordCleanupFailure(string)       {}

func metricsOrNop(m ports.PipelineMetrics) ports.PipelineMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// errorKind names the domain error class of err for metric labels.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrEmbeddingMismatch):
		return "embedding_mismatch"
	case domain.IsKind(err, domain.ErrIngestionConsistency):
		return "consistency"
	case domain.IsKind(err, domain.ErrConflict):
		return "conflict"
	case domain.IsKind(err, domain.ErrProvider):
		return "provider"
	default:
		return "internal"
	}
}
