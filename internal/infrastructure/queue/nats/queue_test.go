package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
	"github.com/nats-io/nats.go"
)

func TestEncodeDecodeCleanupJob(t *testing.T) {
	job := ports.CleanupJob{TenantID: "acme", ChunkIDs: []string{"acme-1-1", "acme-1-2"}, Reason: "delete_cleanup_failed"}
	payload, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(payload) != `{"tenant_id":"acme","chunk_ids":["acme-1-1","acme-1-2"],"reason":"delete_cleanup_failed"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	got, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TenantID != "acme" || len(got.ChunkIDs) != 2 || got.Reason != job.Reason {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestDecodeRejectsIncompleteJob(t *testing.T) {
	for _, raw := range []string{`{"tenant_id":"acme"}`, `{"chunk_ids":["a"]}`, `not json`} {
		if _, err := decodeJob([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	if _, err := encodeJob(ports.CleanupJob{TenantID: " "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAttemptOf(t *testing.T) {
	if got := attemptOf(nil); got != 1 {
		t.Fatalf("nil header: got %d", got)
	}
	header := nats.Header{}
	header.Set(attemptHeader, "3")
	if got := attemptOf(header); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	header.Set(attemptHeader, "garbage")
	if got := attemptOf(header); got != 1 {
		t.Fatalf("expected fallback 1, got %d", got)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation should be neither retried nor recorded: %+v", class)
	}
	if class := classifyNATSError(errors.New("bad subject")); class.Retryable {
		t.Fatalf("unknown errors should not be retried")
	}
}

func TestPublishErrorKinds(t *testing.T) {
	if err := publishError(fmt.Errorf("nats publish: %w", nats.ErrTimeout)); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	if err := publishError(fmt.Errorf("nats publish: %w", nats.ErrMaxPayload)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := publishError(errors.New("permission denied")); !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider, got %v", err)
	}
	if publishError(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}
