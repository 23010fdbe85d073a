package handler

import (
	"net/http"
	"time"

	"codereview/internal/gateway/repository/document"
)

// recentItem is a document without its content.
type recentItem struct {
	ID          string          `json:"id"`
	FileName    string          `json:"fileName"`
	Language    string          `json:"language"`
	IssuesFound int             `json:"issuesFound"`
	Severity    string          `json:"severity"`
	Status      document.Status `json:"status"`
	Score       *int            `json:"overallScore,omitempty"`
	ScoreBand   string          `json:"scoreBand,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.docs.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := h.docs.List(r.Context(), document.DefaultListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recent := make([]recentItem, 0, len(docs))
	for _, d := range docs {
		item := recentItem{
			ID:          d.ID,
			FileName:    d.FileName,
			Language:    d.Language,
			IssuesFound: d.IssuesFound,
			Severity:    string(d.Severity),
			Status:      d.Status,
			CreatedAt:   d.CreatedAt,
		}
		if d.Report != nil {
			score := d.Report.Summary.OverallScore
			item.Score = &score
			item.ScoreBand = d.Report.Summary.ScoreBand
		}
		recent = append(recent, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":  stats,
		"recent": recent,
	})
}
