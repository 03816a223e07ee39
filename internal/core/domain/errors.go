package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("tenant has no ingested documents")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrUnsupportedMedia     = errors.New("unsupported media type")
	ErrProvider             = errors.New("provider failure")
	ErrIngestionConsistency = errors.New("partial chunk write")
	ErrConflict             = errors.New("chunk id already exists")
	ErrEmbeddingMismatch    = errors.New("collection embedding function mismatch")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
