package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

const (
	defaultTopK             = 3
	defaultContextChunks    = 2
	defaultContextBudget    = 3000
	defaultMaxQuestionRunes = 500
	contextSeparator        = "\n\n"
)

type RetrievalOptions struct {
	TopK             int
	ContextChunks    int
	ContextBudget    int
	MaxQuestionRunes int
}

func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		TopK:             defaultTopK,
		ContextChunks:    defaultContextChunks,
		ContextBudget:    defaultContextBudget,
		MaxQuestionRunes: defaultMaxQuestionRunes,
	}
}

func (o RetrievalOptions) normalize() RetrievalOptions {
	def := DefaultRetrievalOptions()
	if o.TopK <= 0 {
		o.TopK = def.TopK
	}
	// Context size is capped: overrides may shrink it but never grow it.
	if o.ContextChunks <= 0 || o.ContextChunks > def.ContextChunks {
		o.ContextChunks = def.ContextChunks
	}
	if o.ContextBudget <= 0 || o.ContextBudget > def.ContextBudget {
		o.ContextBudget = def.ContextBudget
	}
	if o.MaxQuestionRunes <= 0 {
		o.MaxQuestionRunes = def.MaxQuestionRunes
	}
	return o
}

// RetrievalOrchestrator turns a question into a bounded, tenant-scoped context.
type RetrievalOrchestrator struct {
	store *TenantVectorStore
	opts  RetrievalOptions
}

func NewRetrievalOrchestrator(store *TenantVectorStore, opts RetrievalOptions) *RetrievalOrchestrator {
	return &RetrievalOrchestrator{
		store: store,
		opts:  opts.normalize(),
	}
}

// Retrieve returns domain.ErrNotFound when the tenant has no collection. A tenant whose
// collection yields no usable chunks gets a QueryContext with an empty Context and no error.
// Candidates holds only the chunks that made it into the context, in rank order.
func (o *RetrievalOrchestrator) Retrieve(ctx context.Context, tenantID, question string, k int) (domain.QueryContext, error) {
	question = o.NormalizeQuestion(question)
	qc := domain.QueryContext{
		Question: question,
		TenantID: tenantID,
	}
	if question == "" {
		return qc, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("question is required"))
	}
	if k <= 0 {
		k = o.opts.TopK
	}

	coll, err := o.store.Collection(ctx, tenantID)
	if err != nil {
		return qc, err
	}
	matches, err := o.store.Query(ctx, coll, question, k)
	if err != nil {
		return qc, domain.WrapError(domain.ErrProvider, "retrieve", err)
	}

	used := make([]domain.ScoredChunk, 0, o.opts.ContextChunks)
	parts := make([]string, 0, o.opts.ContextChunks)
	for _, match := range matches {
		if len(used) == o.opts.ContextChunks {
			break
		}
		text := strings.TrimSpace(stripControl(match.Content))
		if text == "" {
			continue
		}
		used = append(used, match)
		parts = append(parts, text)
	}

	qc.Candidates = used
	qc.Context = truncateRunes(strings.Join(parts, contextSeparator), o.opts.ContextBudget)
	return qc, nil
}

// NormalizeQuestion trims the question and bounds its length.
func (o *RetrievalOrchestrator) NormalizeQuestion(question string) string {
	return strings.TrimSpace(truncateRunes(strings.TrimSpace(question), o.opts.MaxQuestionRunes))
}

func contextRunes(qc domain.QueryContext) int {
	return utf8.RuneCountInString(qc.Context)
}
