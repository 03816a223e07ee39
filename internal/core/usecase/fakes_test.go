package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

type indexFake struct {
	mu          sync.Mutex
	collections map[string]map[string]string
	addCalls    int
	queryCalls  int
	failAddOn   int // 1-based Add call that fails, 0 disables
	addErr      error
	deleteErr   error
	queryErr    error
	deleted     [][]string
	// afterAdd runs outside the lock once an Add call has stored its batch.
	afterAdd func(call int)
}

func newIndexFake() *indexFake {
	return &indexFake{collections: map[string]map[string]string{}}
}

func (f *indexFake) EnsureCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = map[string]string{}
	}
	return nil
}

func (f *indexFake) HasCollection(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *indexFake) Add(ctx context.Context, collection string, ids, texts []string) error {
	call, err := f.add(ctx, collection, ids, texts)
	if err == nil && f.afterAdd != nil {
		f.afterAdd(call)
	}
	return err
}

func (f *indexFake) add(_ context.Context, collection string, ids, texts []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	call := f.addCalls
	coll, ok := f.collections[collection]
	if !ok {
		return call, errors.New("collection missing")
	}
	if f.failAddOn > 0 && f.addCalls == f.failAddOn {
		// the failing batch lands half of its points
		for i := 0; i < len(ids)/2; i++ {
			coll[ids[i]] = texts[i]
		}
		return call, f.addErr
	}
	for _, id := range ids {
		if _, exists := coll[id]; exists {
			return call, domain.WrapError(domain.ErrConflict, "add", errors.New(id))
		}
	}
	for i, id := range ids {
		coll[id] = texts[i]
	}
	return call, nil
}

func (f *indexFake) Query(_ context.Context, collection, text string, k int) ([]domain.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	query := toTokenSet(text)
	out := make([]domain.ScoredChunk, 0, len(f.collections[collection]))
	for id, content := range f.collections[collection] {
		out = append(out, domain.ScoredChunk{ID: id, Content: content, Score: tokenOverlap(query, toTokenSet(content))})
	}
	// ties come back in reverse id order so callers have to impose their own
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *indexFake) Delete(_ context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, append([]string(nil), ids...))
	for _, id := range ids {
		delete(f.collections[collection], id)
	}
	return nil
}

func (f *indexFake) Existing(_ context.Context, collection string, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := f.collections[collection][id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *indexFake) size(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}

type generatorFake struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *generatorFake) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// paragraphChunker emits one chunk per blank-line separated block.
type paragraphChunker struct{}

func (paragraphChunker) Split(text string) []string {
	out := make([]string, 0, 4)
	for _, block := range strings.Split(text, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

type queueFake struct {
	mu   sync.Mutex
	jobs []ports.CleanupJob
	err  error
}

func (f *queueFake) PublishCleanup(_ context.Context, job ports.CleanupJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) SubscribeCleanup(context.Context, func(context.Context, ports.CleanupJob) error) error {
	return nil
}

type metricsFake struct {
	mu              sync.Mutex
	answers         []domain.AnswerOutcome
	contextRunes    []int
	ingestFailures  []string
	cleanupFailures []string
}

func (f *metricsFake) RecordAnswer(outcome domain.AnswerOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, outcome)
}

func (f *metricsFake) ObserveContextRunes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contextRunes = append(f.contextRunes, n)
}

func (f *metricsFake) ObserveIngestedChunks(int) {}

func (f *metricsFake) RecordIngestFailure(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestFailures = append(f.ingestFailures, kind)
}

func (f *metricsFake) RecordCleanupFailure(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupFailures = append(f.cleanupFailures, reason)
}

type repoFake struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	createErr error
}

func newRepoFake() *repoFake {
	return &repoFake{docs: map[string]domain.Document{}}
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.docs[doc.TenantID+"/"+doc.ID] = *doc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, tenantID, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[tenantID+"/"+id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New(id))
	}
	return &doc, nil
}

func (f *repoFake) ListByTenant(_ context.Context, tenantID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0)
	for _, doc := range f.docs {
		if doc.TenantID == tenantID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *repoFake) Delete(_ context.Context, tenantID, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[tenantID+"/"+id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "delete", errors.New(id))
	}
	delete(f.docs, tenantID+"/"+id)
	return &doc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, tenantID, id string, status domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[tenantID+"/"+id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", errors.New(id))
	}
	doc.Status = status
	f.docs[tenantID+"/"+id] = doc
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(_ context.Context, _ string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(data), nil
}

// pipelineFixture wires the core use cases over in-memory fakes.
type pipelineFixture struct {
	index     *indexFake
	generator *generatorFake
	queue     *queueFake
	metrics   *metricsFake
	repo      *repoFake
	store     *TenantVectorStore
	ingest    *IngestionPipeline
	deletion  *DeletionCoordinator
	query     *QueryUseCase
	documents *DocumentUseCase
}

// collectionOf is the collection name the fixture store uses for a tenant.
func collectionOf(tenantID string) string {
	return domain.CollectionName("tenant_", tenantID)
}

func newPipelineFixture(batchSize int) *pipelineFixture {
	f := &pipelineFixture{
		index:     newIndexFake(),
		generator: &generatorFake{reply: "Returns are accepted within 30 days."},
		queue:     &queueFake{},
		metrics:   &metricsFake{},
		repo:      newRepoFake(),
	}
	f.store = NewTenantVectorStore(f.index, "tenant_", batchSize, nil)
	f.ingest = NewIngestionPipeline(f.store, paragraphChunker{}, NewChunkIDGenerator(), f.queue, f.metrics)
	f.deletion = NewDeletionCoordinator(f.store, f.queue, f.metrics)
	f.query = NewQueryUseCase(
		NewRetrievalOrchestrator(f.store, DefaultRetrievalOptions()),
		NewAnswerSynthesizer(f.generator, DefaultAnswerTexts()),
		f.metrics,
	)
	f.documents = NewDocumentUseCase(f.repo, &extractorFake{}, f.ingest, f.deletion, f.store, 0)
	return f
}
