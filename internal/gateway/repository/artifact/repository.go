package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store archives raw LLM responses per document. Names are relative to
// the document, e.g. "analysis-1718000000000.txt".
type Store interface {
	Put(ctx context.Context, docID, name string, content []byte) error
	Get(ctx context.Context, docID, name string) ([]byte, error)
	GetURL(ctx context.Context, docID, name string) (string, error)
	List(ctx context.Context, docID string) ([]Entry, error)
	DeleteAll(ctx context.Context, docID string) error
}

// Entry describes one archived object. URL is empty for backends that
// cannot hand out links.
type Entry struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	URL       string    `json:"url,omitempty"`
}

var ErrNotFound = errors.New("artifact not found")

// RawResponseName names the archive entry of one analysis run.
func RawResponseName(kind string, at time.Time) string {
	if kind == "" {
		kind = "analysis"
	}
	return fmt.Sprintf("%s-%d.txt", kind, at.UnixMilli())
}

func cleanKey(docID, name string) (string, string, error) {
	docID = strings.TrimSpace(docID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if docID == "" {
		return "", "", fmt.Errorf("document id is required")
	}
	if name == "" {
		return "", "", fmt.Errorf("name is required")
	}
	return docID, name, nil
}

func objectKey(docID, name string) string {
	return docID + "/" + name
}
