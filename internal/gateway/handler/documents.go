package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	artifactrepo "codereview/internal/gateway/repository/artifact"
	"codereview/internal/gateway/repository/document"
	"codereview/internal/review"
)

type createRequest struct {
	FileName string          `json:"fileName"`
	Language string          `json:"language"`
	Content  string          `json:"content"`
	Status   document.Status `json:"status"`
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*2)
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if int64(len(req.Content)) > h.maxUpload {
		h.fail(w, r, errTooLarge)
		return
	}
	doc, err := h.docs.Create(r.Context(), document.NewDocument{
		FileName: req.FileName,
		Language: req.Language,
		Content:  req.Content,
		Status:   req.Status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		limit = n
	}
	docs, err := h.docs.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// updateRequest mirrors the fields a client may change. Revision, when
// given, makes the report write conditional on it.
type updateRequest struct {
	Content  *string         `json:"content"`
	Report   json.RawMessage `json:"analysisResults"`
	Status   document.Status `json:"status"`
	Revision *int64          `json:"revision"`
}

func (h *Handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*2)
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		h.fail(w, r, fmt.Errorf("%w: unknown status %q", errBadRequest, req.Status))
		return
	}
	hasReport := len(req.Report) > 0 && string(req.Report) != "null"
	if req.Content == nil && !hasReport && req.Status == "" {
		h.fail(w, r, fmt.Errorf("%w: nothing to update", errBadRequest))
		return
	}

	id := r.PathValue("id")
	doc, err := h.docs.Get(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	expected := doc.Revision
	if req.Revision != nil {
		expected = *req.Revision
	}

	// New content with no report of its own gets analyzed in the background,
	// so the document does not sit in-progress with nothing running.
	reanalyze := req.Content != nil && !hasReport &&
		(req.Status == "" || req.Status == document.StatusInProgress)

	if req.Content != nil {
		if int64(len(*req.Content)) > h.maxUpload {
			h.fail(w, r, errTooLarge)
			return
		}
		if doc, err = h.docs.UpdateContent(ctx, id, expected, *req.Content); err != nil {
			h.fail(w, r, err)
			return
		}
		expected = doc.Revision
	}

	switch {
	case hasReport:
		rep, err := h.renormalize(req.Report, doc.Input())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		doc, err = h.docs.UpdateAnalysis(ctx, id, expected, document.AnalysisUpdate{Report: rep, Status: req.Status})
		if err != nil {
			h.fail(w, r, err)
			return
		}
	case req.Status != "" && !reanalyze:
		// SetStatus has no conditional form; the revision is checked
		// against the row read above.
		if expected != doc.Revision {
			h.fail(w, r, fmt.Errorf("%w: have %d, expected %d", document.ErrConflict, doc.Revision, expected))
			return
		}
		if err := h.docs.SetStatus(ctx, id, req.Status); err != nil {
			h.fail(w, r, err)
			return
		}
		if doc, err = h.docs.Get(ctx, id); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	if reanalyze {
		if err := h.startAnalysis(r, id); err != nil {
			h.log.Warn("re-analysis not started", zap.String("document_id", id), zap.Error(err))
			doc.Status = document.StatusFailed
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

// renormalize runs a client-supplied report through the same coercion as a
// model response so the stored summary always agrees with its suggestions.
func (h *Handler) renormalize(raw json.RawMessage, in review.Input) (review.Report, error) {
	rep, err := review.Normalize(raw, in)
	if err != nil {
		return review.Report{}, fmt.Errorf("%w: analysisResults: %v", errBadRequest, err)
	}
	var meta struct {
		Source         review.Origin `json:"source"`
		FallbackReason string        `json:"fallbackReason"`
		Model          string        `json:"model"`
	}
	_ = json.Unmarshal(raw, &meta)
	if meta.Source == review.OriginFallback || meta.Source == review.OriginStatic {
		rep.Source = meta.Source
	}
	rep.FallbackReason = meta.FallbackReason
	rep.Model = meta.Model
	return review.Finalize(rep, in, h.review), nil
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.docs.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.raw != nil {
		if err := h.raw.DeleteAll(r.Context(), id); err != nil {
			h.log.Warn("delete raw responses", zap.String("document_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (h *Handler) listRaw(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.docs.Get(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	entries := []artifactrepo.Entry{}
	if h.raw != nil {
		var err error
		if entries, err = h.raw.List(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
		for i := range entries {
			if u, err := h.raw.GetURL(r.Context(), id, entries[i].Name); err == nil {
				entries[i].URL = u
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documentId": id, "responses": entries})
}

func (h *Handler) getRaw(w http.ResponseWriter, r *http.Request) {
	if h.raw == nil {
		h.fail(w, r, artifactrepo.ErrNotFound)
		return
	}
	data, err := h.raw.Get(r.Context(), r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
