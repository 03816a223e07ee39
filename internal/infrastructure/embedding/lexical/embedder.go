package lexical

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	DefaultDimensions = 384
	bm25K1            = 1.2
	bigramWeight      = 0.5
)

// Embedder hashes tokens and adjacent token pairs into a fixed-size, L2-normalized
// vector with BM25-saturated term weights. It needs no model server, which makes it
// the embedder for local mode and tests.
type Embedder struct {
	dim int
}

func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) ID() string {
	return fmt.Sprintf("lexical-fnv-%d", e.dim)
}

func (e *Embedder) Dimensions() int {
	return e.dim
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.encode(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.encode(text), nil
}

func (e *Embedder) encode(text string) []float32 {
	tokens := tokenizeAlphaNum(text)
	termFreq := make(map[uint32]float64, len(tokens)*2)
	for i, token := range tokens {
		termFreq[hashToken(token)%uint32(e.dim)] += 1.0
		if i > 0 {
			termFreq[hashToken(tokens[i-1]+" "+token)%uint32(e.dim)] += bigramWeight
		}
	}

	vector := make([]float32, e.dim)
	var norm float64
	for idx, tf := range termFreq {
		weight := (tf * (bm25K1 + 1.0)) / (tf + bm25K1)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			continue
		}
		vector[idx] = float32(weight)
		norm += weight * weight
	}
	if norm == 0 {
		return vector
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= inv
	}
	return vector
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
