package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

// Mux dispatches extraction by the source type derived from the mime hint.
type Mux struct {
	byType map[domain.SourceType]ports.TextExtractor
}

func NewMux(pdf, text ports.TextExtractor) *Mux {
	return &Mux{byType: map[domain.SourceType]ports.TextExtractor{
		domain.SourcePDF: pdf,
		domain.SourceTXT: text,
	}}
}

func (m *Mux) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	sourceType, ok := domain.SourceTypeFromMime(mimeType)
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedMedia, "extract", fmt.Errorf("mime type %q", mimeType))
	}
	extractor, ok := m.byType[sourceType]
	if !ok || extractor == nil {
		return "", domain.WrapError(domain.ErrUnsupportedMedia, "extract", fmt.Errorf("no extractor for %s", sourceType))
	}
	return extractor.Extract(ctx, mimeType, data)
}
