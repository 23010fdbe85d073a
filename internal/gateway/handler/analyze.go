package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"codereview/internal/gateway/repository/document"
	"codereview/internal/gateway/service/analysis"
	"codereview/internal/language"
	"codereview/internal/review"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 64 << 10

// upload accepts a multipart "file" field, stores it and analyzes it. With
// ?async=true the analysis continues after a 202 reply; progress is
// visible on the watch socket.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartSlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, errTooLarge)
			return
		}
		h.fail(w, r, fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !language.Supported(name) {
		h.fail(w, r, fmt.Errorf("%w: unsupported file type %q (allowed: %s)",
			errBadRequest, filepath.Ext(name), strings.Join(language.Extensions(), ", ")))
		return
	}
	if header.Size > h.maxUpload {
		h.fail(w, r, fmt.Errorf("%w: file exceeds %d bytes", errTooLarge, h.maxUpload))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: read upload: %v", errBadRequest, err))
		return
	}
	if int64(len(data)) > h.maxUpload {
		h.fail(w, r, fmt.Errorf("%w: file exceeds %d bytes", errTooLarge, h.maxUpload))
		return
	}
	if !utf8.Valid(data) {
		h.fail(w, r, fmt.Errorf("%w: file is not valid UTF-8 text", errBadRequest))
		return
	}

	doc, err := h.docs.Create(r.Context(), document.NewDocument{
		FileName: name,
		Language: r.FormValue("language"),
		Content:  string(data),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if err := h.startAnalysis(r, doc.ID); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, doc)
		return
	}

	analyzed, err := h.analysis.Analyze(r.Context(), doc.ID)
	if err != nil {
		h.log.Warn("analysis after upload", zap.String("document_id", doc.ID), zap.Error(err))
		if cur, gerr := h.docs.Get(r.Context(), doc.ID); gerr == nil {
			doc = cur
		}
		writeJSON(w, http.StatusCreated, doc)
		return
	}
	writeJSON(w, http.StatusCreated, analyzed)
}

// startAnalysis queues a background analysis. When the service refuses
// (shutdown) the document is marked failed instead of staying in-progress.
func (h *Handler) startAnalysis(r *http.Request, id string) error {
	err := h.analysis.Start(id)
	if err == nil {
		return nil
	}
	if serr := h.docs.SetStatus(r.Context(), id, document.StatusFailed); serr != nil {
		h.log.Warn("mark failed", zap.String("document_id", id), zap.Error(serr))
	}
	return err
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*2)
	var req analysis.ContentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if int64(len(req.Content)) > h.maxUpload {
		h.fail(w, r, errTooLarge)
		return
	}
	rep, err := h.analysis.AnalyzeContent(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) understand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*2)
	var req struct {
		FileName string `json:"fileName"`
		Language string `json:"language"`
		Content  string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.explain.Explain(r.Context(), review.Input{
		FileName: req.FileName,
		Language: req.Language,
		Content:  req.Content,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
