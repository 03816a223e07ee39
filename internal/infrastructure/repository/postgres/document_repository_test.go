package postgres

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

var documentColumns = []string{"id", "tenant_id", "filename", "source_type", "chunk_ids", "status", "uploaded_at"}

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateStoresChunkIDsAsJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploaded := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "acme", "faq.txt", "txt", []byte(`["acme-1-0","acme-1-1"]`), "ready", uploaded).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Document{
		ID:         "doc-1",
		TenantID:   "acme",
		Filename:   "faq.txt",
		SourceType: domain.SourceTXT,
		ChunkIDs:   []string{"acme-1-0", "acme-1-1"},
		Status:     domain.StatusReady,
		UploadedAt: uploaded,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScopesToTenant(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploaded := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, tenant_id, filename").
		WithArgs("acme", "doc-1").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("doc-1", "acme", "faq.txt", "txt", []byte(`["acme-1-0"]`), "ready", uploaded))

	doc, err := repo.GetByID(context.Background(), "acme", "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.TenantID != "acme" || doc.SourceType != domain.SourceTXT || !reflect.DeepEqual(doc.ChunkIDs, []string{"acme-1-0"}) {
		t.Fatalf("unexpected document %#v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, tenant_id, filename").
		WithArgs("acme", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "acme", "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByTenant(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploaded := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, tenant_id, filename").
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("doc-2", "acme", "b.pdf", "pdf", []byte(`[]`), "degraded", uploaded).
			AddRow("doc-1", "acme", "a.txt", "txt", []byte(`["acme-1-0"]`), "ready", uploaded.Add(-time.Hour)))

	docs, err := repo.ListByTenant(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListByTenant() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Status != domain.StatusDegraded || docs[0].SourceType != domain.SourcePDF {
		t.Fatalf("unexpected documents %#v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsRemovedDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploaded := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("DELETE FROM documents").
		WithArgs("acme", "doc-1").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("doc-1", "acme", "faq.txt", "txt", []byte(`["acme-1-0","acme-1-1"]`), "ready", uploaded))

	doc, err := repo.Delete(context.Background(), "acme", "doc-1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(doc.ChunkIDs) != 2 {
		t.Fatalf("expected chunk ids of the removed document, got %#v", doc.ChunkIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteMissingDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("DELETE FROM documents").
		WithArgs("acme", "missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Delete(context.Background(), "acme", "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("acme", "missing", string(domain.StatusDegraded)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "acme", "missing", domain.StatusDegraded)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
