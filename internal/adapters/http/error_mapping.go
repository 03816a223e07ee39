package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict), domain.IsKind(err, domain.ErrEmbeddingMismatch):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrProvider), domain.IsKind(err, domain.ErrIngestionConsistency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError hides unclassified failures behind a generic message outside development mode.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_unhandled_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		if !rt.development {
			message = "internal server error"
		}
	}
	writeJSON(w, status, map[string]string{"error": message})
}
