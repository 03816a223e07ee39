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

const maxTenantNameRunes = 100

// QueryUseCase is the ask entry point. Past validation it always resolves to an answer.
type QueryUseCase struct {
	retriever   *RetrievalOrchestrator
	synthesizer *AnswerSynthesizer
	metrics     ports.PipelineMetrics
}

func NewQueryUseCase(
	retriever *RetrievalOrchestrator,
	synthesizer *AnswerSynthesizer,
	metrics ports.PipelineMetrics,
) *QueryUseCase {
	return &QueryUseCase{
		retriever:   retriever,
		synthesizer: synthesizer,
		metrics:     metricsOrNop(metrics),
	}
}

func (uc *QueryUseCase) Ask(ctx context.Context, req ports.AskRequest) (*domain.Answer, error) {
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("tenant id is required"))
	}
	question := uc.retriever.NormalizeQuestion(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}
	if req.K < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("k must not be negative: %d", req.K))
	}
	tenantName := strings.TrimSpace(req.TenantName)
	if tenantName == "" {
		tenantName = tenantID
	}
	tenantName = truncateRunes(tenantName, maxTenantNameRunes)

	// The model call is not cancelled when the caller goes away.
	ctx = context.WithoutCancel(ctx)
	texts := uc.synthesizer.Texts()

	qc, err := uc.retriever.Retrieve(ctx, tenantID, question, req.K)
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		return uc.finish(&domain.Answer{Text: texts.NoInformation, Outcome: domain.OutcomeNoInformation}), nil
	case err != nil:
		slog.Warn("retrieval_failed", "tenant_id", tenantID, "error", err.Error())
		return uc.finish(&domain.Answer{Text: texts.Apology, Outcome: domain.OutcomeProviderFallback}), nil
	case qc.Context == "":
		return uc.finish(&domain.Answer{Text: texts.NoInformation, Outcome: domain.OutcomeNoInformation}), nil
	}
	uc.metrics.ObserveContextRunes(contextRunes(qc))

	answer := uc.synthesizer.Synthesize(ctx, tenantName, qc.Question, qc.Context)
	if answer.Outcome == domain.OutcomeAnswered {
		answer.Sources = qc.Candidates
	}
	return uc.finish(&answer), nil
}

func (uc *QueryUseCase) finish(answer *domain.Answer) *domain.Answer {
	uc.metrics.RecordAnswer(answer.Outcome)
	return answer
}
