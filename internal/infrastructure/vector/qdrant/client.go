package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

// pointNamespace derives stable point ids from chunk ids.
var pointNamespace = uuid.MustParse("6f1c1f9e-3d0b-5a57-9c39-2b1c8a7e4d10")

// Client stores each tenant collection in Qdrant with one named vector. The vector name is the
// embedder id, so a collection created by one embedding function rejects every other one.
type Client struct {
	baseURL    string
	httpClient *http.Client
	embedder   ports.Embedder
	vectorSize int

	ensureMu sync.Mutex
	ensured  map[string]struct{}
}

func New(baseURL string, embedder ports.Embedder, vectorSize int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		vectorSize: vectorSize,
		ensured:    make(map[string]struct{}),
	}
}

func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors json.RawMessage `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	if c.isEnsured(name) {
		return nil
	}

	info, found, err := c.getCollection(ctx, name)
	if err != nil {
		return err
	}
	if found {
		if err := c.checkVectors(name, info); err != nil {
			return err
		}
		c.markEnsured(name)
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]vectorParams{
			c.embedder.ID(): {Size: c.vectorSize, Distance: "Cosine"},
		},
	}
	status, err := c.doJSON(ctx, http.MethodPut, collectionPath(name), reqBody, nil, "create collection")
	// 409 when a concurrent ingestion created it first
	if status == http.StatusConflict {
		c.markEnsured(name)
		return nil
	}
	if err != nil {
		return err
	}
	c.markEnsured(name)
	return nil
}

func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	_, found, err := c.getCollection(ctx, name)
	return found, err
}

func (c *Client) Add(ctx context.Context, name string, ids, texts []string) error {
	if len(ids) != len(texts) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant add", fmt.Errorf("ids/texts mismatch: %d/%d", len(ids), len(texts)))
	}
	if len(ids) == 0 {
		return nil
	}

	existing, err := c.Existing(ctx, name, ids)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return domain.WrapError(domain.ErrConflict, "qdrant add", fmt.Errorf("%d ids already stored, first %s", len(existing), existing[0]))
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(ids) {
		return domain.WrapError(domain.ErrProvider, "qdrant add", fmt.Errorf("vectors/ids mismatch: %d/%d", len(vectors), len(ids)))
	}

	type point struct {
		ID      string               `json:"id"`
		Vector  map[string][]float32 `json:"vector"`
		Payload map[string]any       `json:"payload"`
	}
	vectorName := c.embedder.ID()
	points := make([]point, 0, len(ids))
	for i := range ids {
		points = append(points, point{
			ID:     PointID(ids[i]),
			Vector: map[string][]float32{vectorName: vectors[i]},
			Payload: map[string]any{
				"chunk_id": ids[i],
				"text":     texts[i],
			},
		})
	}

	body := map[string]any{"points": points}
	status, err := c.doJSON(ctx, http.MethodPut, collectionPath(name)+"/points?wait=true", body, nil, "upsert")
	if status != http.StatusNotFound {
		return err
	}
	// The collection was dropped behind the cache; recreate it and write once more.
	c.forgetEnsured(name)
	if err := c.EnsureCollection(ctx, name); err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodPut, collectionPath(name)+"/points?wait=true", body, nil, "upsert")
	return err
}

func (c *Client) Query(ctx context.Context, name, text string, k int) ([]domain.ScoredChunk, error) {
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   c.embedder.ID(),
			"vector": vector,
		},
		"limit":        k,
		"with_payload": true,
	}
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, collectionPath(name)+"/points/search", reqBody, &searchResp, "search")
	if status == http.StatusNotFound {
		return nil, domain.WrapError(domain.ErrNotFound, "qdrant search", fmt.Errorf("collection %s", name))
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredChunk{
			ID:      getStringPayload(r.Payload, "chunk_id"),
			Content: getStringPayload(r.Payload, "text"),
			Score:   r.Score,
		})
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	reqBody := map[string]any{"points": pointIDs(ids)}
	status, err := c.doJSON(ctx, http.MethodPost, collectionPath(name)+"/points/delete?wait=true", reqBody, nil, "delete")
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) Existing(ctx context.Context, name string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	reqBody := map[string]any{
		"ids":          pointIDs(ids),
		"with_payload": []string{"chunk_id"},
		"with_vector":  false,
	}
	var resp struct {
		Result []struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, collectionPath(name)+"/points", reqBody, &resp, "retrieve")
	if status == http.StatusNotFound {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	found := make(map[string]struct{}, len(resp.Result))
	for _, r := range resp.Result {
		found[getStringPayload(r.Payload, "chunk_id")] = struct{}{}
	}
	out := make([]string, 0, len(found))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *Client) getCollection(ctx context.Context, name string) (collectionInfo, bool, error) {
	var info collectionInfo
	status, err := c.doJSON(ctx, http.MethodGet, collectionPath(name), nil, &info, "get collection")
	if status == http.StatusNotFound {
		return collectionInfo{}, false, nil
	}
	if err != nil {
		return collectionInfo{}, false, err
	}
	return info, true, nil
}

func (c *Client) checkVectors(name string, info collectionInfo) error {
	var named map[string]vectorParams
	if err := json.Unmarshal(info.Result.Config.Params.Vectors, &named); err != nil || named == nil {
		return domain.WrapError(domain.ErrEmbeddingMismatch, "qdrant ensure collection",
			fmt.Errorf("collection %s has no named vectors", name))
	}
	params, ok := named[c.embedder.ID()]
	if !ok {
		return domain.WrapError(domain.ErrEmbeddingMismatch, "qdrant ensure collection",
			fmt.Errorf("collection %s has no vector %q", name, c.embedder.ID()))
	}
	if c.vectorSize > 0 && params.Size != c.vectorSize {
		return domain.WrapError(domain.ErrEmbeddingMismatch, "qdrant ensure collection",
			fmt.Errorf("collection %s vector size %d, expected %d", name, params.Size, c.vectorSize))
	}
	return nil
}

// doJSON returns the response status alongside the error so callers can treat 404 and 409
// as outcomes rather than failures.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		return 0, domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, statusError(operation, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, domain.WrapError(domain.ErrProvider, "qdrant "+operation, fmt.Errorf("decode response: %w", err))
		}
	}
	return resp.StatusCode, nil
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		err = fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return domain.WrapError(domain.ErrProvider, "qdrant "+operation, err)
}

func (c *Client) isEnsured(name string) bool {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	_, ok := c.ensured[name]
	return ok
}

func (c *Client) markEnsured(name string) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[name] = struct{}{}
}

func (c *Client) forgetEnsured(name string) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	delete(c.ensured, name)
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func pointIDs(chunkIDs []string) []string {
	out := make([]string, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		out = append(out, PointID(id))
	}
	return out
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
