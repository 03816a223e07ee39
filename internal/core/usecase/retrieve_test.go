package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

func seedCollection(f *pipelineFixture, tenantID string, chunks map[string]string) {
	f.index.collections[collectionOf(tenantID)] = chunks
}

func TestRetrieveSkipsBlankChunksAndStripsControl(t *testing.T) {
	f := newPipelineFixture(0)
	seedCollection(f, "acme", map[string]string{
		"acme-1-0": " \x00\t ",
		"acme-1-1": "refund \x01policy applies",
		"acme-1-2": "refund window is 30 days",
	})
	orchestrator := NewRetrievalOrchestrator(f.store, DefaultRetrievalOptions())

	qc, err := orchestrator.Retrieve(context.Background(), "acme", "  refund policy  ", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if qc.Question != "refund policy" {
		t.Fatalf("question not normalized: %q", qc.Question)
	}
	if len(qc.Candidates) != 2 {
		t.Fatalf("expected 2 usable candidates, got %#v", qc.Candidates)
	}
	for _, c := range qc.Candidates {
		if c.ID == "acme-1-0" {
			t.Fatalf("blank chunk must not reach the context")
		}
	}
	if strings.ContainsRune(qc.Context, '\x01') {
		t.Fatalf("control character leaked into context: %q", qc.Context)
	}
	if !strings.Contains(qc.Context, "\n\n") {
		t.Fatalf("chunks must be joined by a blank line: %q", qc.Context)
	}
}

func TestRetrieveTruncatesContextToBudget(t *testing.T) {
	f := newPipelineFixture(0)
	seedCollection(f, "acme", map[string]string{
		"acme-1-0": "returns are accepted within thirty days of purchase",
		"acme-1-1": "returns require the original packaging",
	})
	orchestrator := NewRetrievalOrchestrator(f.store, RetrievalOptions{ContextBudget: 12})

	qc, err := orchestrator.Retrieve(context.Background(), "acme", "returns", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got := utf8.RuneCountInString(qc.Context); got != 12 {
		t.Fatalf("expected 12 runes of context, got %d: %q", got, qc.Context)
	}
}

func TestRetrieveUnknownTenantIsNotFound(t *testing.T) {
	f := newPipelineFixture(0)
	orchestrator := NewRetrievalOrchestrator(f.store, DefaultRetrievalOptions())

	_, err := orchestrator.Retrieve(context.Background(), "ghost", "anything", 3)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRetrieveQueryFailureIsProviderError(t *testing.T) {
	f := newPipelineFixture(0)
	seedCollection(f, "acme", map[string]string{"acme-1-0": "text"})
	f.index.queryErr = errors.New("connection refused")
	orchestrator := NewRetrievalOrchestrator(f.store, DefaultRetrievalOptions())

	_, err := orchestrator.Retrieve(context.Background(), "acme", "text", 3)
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if f.index.queryCalls != 1 {
		t.Fatalf("query must not be retried, got %d calls", f.index.queryCalls)
	}
}

func TestRetrieveKeepsTenantsWithSameSlugApart(t *testing.T) {
	f := newPipelineFixture(0)
	_, err := f.ingest.Ingest(context.Background(), ports.IngestRequest{
		TenantID:   "acme corp",
		DocumentID: "pricing",
		RawText:    "Secret pricing is 42 dollars per seat.",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	orchestrator := NewRetrievalOrchestrator(f.store, DefaultRetrievalOptions())

	for _, other := range []string{"ACME-corp", "Acme Corp"} {
		qc, err := orchestrator.Retrieve(context.Background(), other, "secret pricing", 3)
		if !domain.IsKind(err, domain.ErrNotFound) {
			t.Fatalf("tenant %q must not see another tenant's collection, got err=%v context=%q", other, err, qc.Context)
		}
	}
	qc, err := orchestrator.Retrieve(context.Background(), "acme corp", "secret pricing", 3)
	if err != nil || !strings.Contains(qc.Context, "42 dollars") {
		t.Fatalf("owner must still retrieve its chunk, err=%v context=%q", err, qc.Context)
	}
}

func TestRetrievalOptionsCapContextSize(t *testing.T) {
	got := RetrievalOptions{TopK: 10, ContextChunks: 5, ContextBudget: 9000}.normalize()
	if got.ContextChunks != 2 || got.ContextBudget != 3000 {
		t.Fatalf("context must stay within 2 chunks and 3000 runes, got %#v", got)
	}
	if got.TopK != 10 {
		t.Fatalf("top k override must be kept, got %d", got.TopK)
	}
	smaller := RetrievalOptions{ContextChunks: 1, ContextBudget: 500}.normalize()
	if smaller.ContextChunks != 1 || smaller.ContextBudget != 500 {
		t.Fatalf("smaller overrides must be kept, got %#v", smaller)
	}
}
