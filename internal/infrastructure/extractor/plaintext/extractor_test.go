package plaintext

import (
	"context"
	"testing"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

func TestExtractTrimsAndDropsBOM(t *testing.T) {
	got, err := NewExtractor().Extract(context.Background(), "text/plain", []byte("\xEF\xBB\xBF  Returns within 30 days.\n"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Returns within 30 days." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "text/plain", []byte{0xff, 0xfe, 0x00, 0x81})
	if !domain.IsKind(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("expected unsupported media, got %v", err)
	}
}
