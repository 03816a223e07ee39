package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

const defaultAddBatchSize = 100

// TenantVectorStore owns tenant collection naming and scopes every index call to one tenant.
// A single instance is built at startup and shared by all pipeline components.
// Writes and deletes run through the retrier; Collection and Query are single attempts.
type TenantVectorStore struct {
	index     ports.VectorIndex
	prefix    string
	batchSize int
	retrier   ports.Retrier
}

func NewTenantVectorStore(index ports.VectorIndex, collectionPrefix string, batchSize int, retrier ports.Retrier) *TenantVectorStore {
	if batchSize <= 0 {
		batchSize = defaultAddBatchSize
	}
	if retrier == nil {
		retrier = singleAttempt{}
	}
	return &TenantVectorStore{
		index:     index,
		prefix:    collectionPrefix,
		batchSize: batchSize,
		retrier:   retrier,
	}
}

type singleAttempt struct{}

func (singleAttempt) Do(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *TenantVectorStore) collectionFor(tenantID string) (domain.TenantCollection, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.TenantCollection{}, domain.WrapError(domain.ErrInvalidInput, "resolve collection", errors.New("tenant id is required"))
	}
	return domain.TenantCollection{
		TenantID: tenantID,
		Name:     domain.CollectionName(s.prefix, tenantID),
	}, nil
}

// EnsureCollection creates the tenant collection if it does not exist yet.
func (s *TenantVectorStore) EnsureCollection(ctx context.Context, tenantID string) (domain.TenantCollection, error) {
	coll, err := s.collectionFor(tenantID)
	if err != nil {
		return domain.TenantCollection{}, err
	}
	err = s.retrier.Do(ctx, "vector_ensure_collection", func(ctx context.Context) error {
		return s.index.EnsureCollection(ctx, coll.Name)
	})
	if err != nil {
		return domain.TenantCollection{}, fmt.Errorf("ensure collection %s: %w", coll.Name, err)
	}
	return coll, nil
}

// Collection resolves an existing tenant collection and fails with domain.ErrNotFound otherwise.
func (s *TenantVectorStore) Collection(ctx context.Context, tenantID string) (domain.TenantCollection, error) {
	coll, err := s.collectionFor(tenantID)
	if err != nil {
		return domain.TenantCollection{}, err
	}
	ok, err := s.index.HasCollection(ctx, coll.Name)
	if err != nil {
		return domain.TenantCollection{}, fmt.Errorf("lookup collection %s: %w", coll.Name, err)
	}
	if !ok {
		return domain.TenantCollection{}, domain.WrapError(domain.ErrNotFound, "lookup collection", fmt.Errorf("tenant=%s", tenantID))
	}
	return coll, nil
}

// Add writes chunks in batches. On failure written holds the ids of the batches that completed;
// the failing batch itself may have been partially applied by the index.
func (s *TenantVectorStore) Add(ctx context.Context, coll domain.TenantCollection, ids, texts []string) ([]string, error) {
	if len(ids) != len(texts) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add chunks", fmt.Errorf("ids/texts mismatch: %d/%d", len(ids), len(texts)))
	}
	written := make([]string, 0, len(ids))
	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batchIDs, batchTexts := ids[start:end], texts[start:end]
		err := s.retrier.Do(ctx, "vector_add", func(ctx context.Context) error {
			return s.index.Add(ctx, coll.Name, batchIDs, batchTexts)
		})
		if err != nil {
			return written, fmt.Errorf("add batch %d-%d to %s: %w", start, end, coll.Name, err)
		}
		written = append(written, batchIDs...)
	}
	return written, nil
}

// Query returns up to k matches ordered by score, ties broken by id so repeated queries agree.
func (s *TenantVectorStore) Query(ctx context.Context, coll domain.TenantCollection, text string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = defaultTopK
	}
	matches, err := s.index.Query(ctx, coll.Name, text, k)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Name, err)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *TenantVectorStore) Delete(ctx context.Context, coll domain.TenantCollection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.retrier.Do(ctx, "vector_delete", func(ctx context.Context) error {
		return s.index.Delete(ctx, coll.Name, ids)
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", coll.Name, err)
	}
	return nil
}

// Existing reports which of ids are present in the collection.
func (s *TenantVectorStore) Existing(ctx context.Context, coll domain.TenantCollection, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	err := s.retrier.Do(ctx, "vector_existing", func(ctx context.Context) error {
		var err error
		found, err = s.index.Existing(ctx, coll.Name, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("lookup ids in %s: %w", coll.Name, err)
	}
	return found, nil
}
