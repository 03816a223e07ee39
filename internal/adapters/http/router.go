package httpadapter

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/tenant-rag/internal/config"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
	"github.com/kirillkom/tenant-rag/internal/observability/metrics"
)

const (
	tenantIDHeader   = "X-Tenant-Id"
	tenantNameHeader = "X-Tenant-Name"

	multipartOverheadBytes = 1 << 20
	maxJSONBodyBytes       = 1 << 20
)

type Router struct {
	docs    ports.DocumentService
	queryUC ports.QueryService
	cleaner ports.ChunkCleaner
	metrics *metrics.HTTPServerMetrics

	development    bool
	maxUploadBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

func NewRouter(
	cfg config.Config,
	docs ports.DocumentService,
	queryUC ports.QueryService,
	cleaner ports.ChunkCleaner,
) *Router {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &Router{
		docs:           docs,
		queryUC:        queryUC,
		cleaner:        cleaner,
		development:    cfg.IsDevelopment(),
		maxUploadBytes: maxUpload,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
	}
}

// WithMetrics exposes /metrics and instruments every request.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("GET /v1/documents", rt.listDocuments)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	api.HandleFunc("POST /v1/documents/{id}/reconcile", rt.reconcileDocument)
	api.HandleFunc("POST /v1/ask", rt.ask)
	api.HandleFunc("POST /v1/chunks/delete", rt.deleteChunks)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", rt.trafficControl(api))

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) trafficControl(next http.Handler) http.Handler {
	handler := backpressureMiddleware(next, rt.maxInFlight, 250*time.Millisecond)
	return rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverheadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	result, err := rt.docs.Upload(r.Context(), ports.UploadRequest{
		TenantID: tenantID(r),
		Filename: fileHeader.Filename,
		MimeType: detectMimeType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename),
		Body:     file,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"document":  result.Document,
		"chunk_ids": result.Document.ChunkIDs,
	})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.docs.List(r.Context(), tenantID(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.Get(r.Context(), tenantID(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	removed, err := rt.docs.Delete(r.Context(), tenantID(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (rt *Router) reconcileDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.Reconcile(r.Context(), tenantID(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		K        int    `json:"k"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	// The display name comes from the resolved tenant headers, never from the caller's body.
	answer, err := rt.queryUC.Ask(r.Context(), ports.AskRequest{
		TenantID:   tenantID(r),
		TenantName: strings.TrimSpace(r.Header.Get(tenantNameHeader)),
		Question:   req.Question,
		K:          req.K,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) deleteChunks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChunkIDs []string `json:"chunk_ids"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	tenant := tenantID(r)
	if tenant == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": tenantIDHeader + " header is required"})
		return
	}
	removed := rt.cleaner.Cleanup(r.Context(), tenant, req.ChunkIDs)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func tenantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(tenantIDHeader))
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

// detectMimeType trusts the part header unless it is missing or generic.
func detectMimeType(headerValue, filename string) string {
	mt := strings.TrimSpace(headerValue)
	if base, _, err := mime.ParseMediaType(mt); err == nil && base != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt", ".text":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return mt
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
