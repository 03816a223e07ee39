package pdf

import (
	"context"
	"testing"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "application/pdf", []byte("definitely not a pdf"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractor().Extract(ctx, "application/pdf", nil); err == nil {
		t.Fatalf("expected context error")
	}
}
