package domain

import (
	"strings"
	"time"
)

type SourceType string

const (
	SourcePDF SourceType = "pdf"
	SourceTXT SourceType = "txt"
)

// SourceTypeFromMime maps an upload mime hint to a stored source type.
func SourceTypeFromMime(mimeType string) (SourceType, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "application/pdf":
		return SourcePDF, true
	case "text/plain", "text/markdown":
		return SourceTXT, true
	default:
		return "", false
	}
}

type DocumentStatus string

const (
	StatusReady DocumentStatus = "ready"
	// StatusDegraded marks a document whose chunk set is no longer fully present in its collection.
	StatusDegraded DocumentStatus = "degraded"
)

type Document struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Filename   string         `json:"filename"`
	SourceType SourceType     `json:"source_type"`
	ChunkIDs   []string       `json:"chunk_ids"`
	Status     DocumentStatus `json:"status"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

type Chunk struct {
	ID               string `json:"id"`
	Collection       string `json:"collection"`
	Content          string `json:"content"`
	SourceDocumentID string `json:"source_document_id"`
}
