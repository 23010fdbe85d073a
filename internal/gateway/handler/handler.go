// Package handler serves the JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"codereview/internal/explain"
	artifactrepo "codereview/internal/gateway/repository/artifact"
	"codereview/internal/gateway/repository/document"
	"codereview/internal/gateway/service/analysis"
	"codereview/internal/review"
)

const defaultMaxUploadBytes = 1 << 20

var (
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request too large")
)

type Deps struct {
	Documents      document.Store
	Raw            artifactrepo.Store
	Analysis       *analysis.Service
	Explain        *explain.Service
	Review         review.Options
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type Handler struct {
	docs      document.Store
	raw       artifactrepo.Store
	analysis  *analysis.Service
	explain   *explain.Service
	review    review.Options
	maxUpload int64
	log       *zap.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUploadBytes
	}
	d.Review.SkipStatic = true
	return &Handler{
		docs:      d.Documents,
		raw:       d.Raw,
		analysis:  d.Analysis,
		explain:   d.Explain,
		review:    d.Review,
		maxUpload: d.MaxUploadBytes,
		log:       d.Logger.Named("http"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.health)

	mux.HandleFunc("POST /api/documents", h.createDocument)
	mux.HandleFunc("GET /api/documents", h.listDocuments)
	mux.HandleFunc("GET /api/documents/{id}", h.getDocument)
	mux.HandleFunc("PUT /api/documents/{id}", h.updateDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", h.deleteDocument)
	mux.HandleFunc("GET /api/documents/{id}/raw", h.listRaw)
	mux.HandleFunc("GET /api/documents/{id}/raw/{name}", h.getRaw)
	mux.HandleFunc("GET /api/documents/{id}/watch", h.watch)

	mux.HandleFunc("POST /api/upload", h.upload)
	mux.HandleFunc("POST /api/analyze", h.analyze)
	mux.HandleFunc("POST /api/understand", h.understand)
	mux.HandleFunc("GET /api/dashboard", h.dashboard)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errTooLarge
		}
		return fmt.Errorf("%w: invalid json body", errBadRequest)
	}
	return nil
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, document.ErrInvalid),
		errors.Is(err, analysis.ErrInvalid),
		errors.Is(err, explain.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrNotFound), errors.Is(err, artifactrepo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrConflict), errors.Is(err, analysis.ErrStale):
		return http.StatusConflict
	case errors.Is(err, errTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, analysis.ErrDraining):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"error": ...}. Server errors are logged and their
// details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
