package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

type point struct {
	text   string
	vector []float32
}

type collection struct {
	embedderID string
	points     map[string]point
}

// Index is an in-process brute-force cosine index. Nothing survives a restart.
type Index struct {
	embedder ports.Embedder

	mu          sync.RWMutex
	collections map[string]*collection
}

func New(embedder ports.Embedder) *Index {
	return &Index{
		embedder:    embedder,
		collections: make(map[string]*collection),
	}
}

func (i *Index) EnsureCollection(_ context.Context, name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if existing, ok := i.collections[name]; ok {
		if existing.embedderID != i.embedder.ID() {
			return domain.WrapError(domain.ErrEmbeddingMismatch, "memory ensure collection",
				fmt.Errorf("collection %s uses %s, embedder is %s", name, existing.embedderID, i.embedder.ID()))
		}
		return nil
	}
	i.collections[name] = &collection{
		embedderID: i.embedder.ID(),
		points:     make(map[string]point),
	}
	return nil
}

func (i *Index) HasCollection(_ context.Context, name string) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.collections[name]
	return ok, nil
}

func (i *Index) Add(ctx context.Context, name string, ids, texts []string) error {
	if len(ids) != len(texts) {
		return domain.WrapError(domain.ErrInvalidInput, "memory add", fmt.Errorf("ids/texts mismatch: %d/%d", len(ids), len(texts)))
	}
	if len(ids) == 0 {
		return nil
	}
	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(ids) {
		return domain.WrapError(domain.ErrProvider, "memory add", fmt.Errorf("vectors/ids mismatch: %d/%d", len(vectors), len(ids)))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	coll, err := i.collectionLocked(name)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, exists := coll.points[id]; exists {
			return domain.WrapError(domain.ErrConflict, "memory add", errors.New(id))
		}
	}
	for n, id := range ids {
		coll.points[id] = point{text: texts[n], vector: vectors[n]}
	}
	return nil
}

func (i *Index) Query(ctx context.Context, name, text string, k int) ([]domain.ScoredChunk, error) {
	query, err := i.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	coll, err := i.collectionLocked(name)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredChunk, 0, len(coll.points))
	for id, p := range coll.points {
		out = append(out, domain.ScoredChunk{ID: id, Content: p.text, Score: cosine(query, p.vector)})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (i *Index) Delete(_ context.Context, name string, ids []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	coll, ok := i.collections[name]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(coll.points, id)
	}
	return nil
}

func (i *Index) Existing(_ context.Context, name string, ids []string) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	coll, ok := i.collections[name]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, exists := coll.points[id]; exists {
			out = append(out, id)
		}
	}
	return out, nil
}

func (i *Index) collectionLocked(name string) (*collection, error) {
	coll, ok := i.collections[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "memory collection", fmt.Errorf("collection %s", name))
	}
	return coll, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dotSum, normA, normB float64
	for n := range a {
		dotSum += float64(a[n]) * float64(b[n])
		normA += float64(a[n]) * float64(a[n])
		normB += float64(b[n]) * float64(b[n])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotSum / (math.Sqrt(normA) * math.Sqrt(normB))
}
