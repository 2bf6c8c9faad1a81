package domain

import (
	"fmt"
	"strings"
)

// MaxBodyLength bounds the accepted body size on ingest.
const MaxBodyLength = 10000

// ContentItem is a single indexed piece of content. Immutable once
// indexed except via explicit re-ingestion under the same id.
type ContentItem struct {
	ID         string
	Title      string
	Body       string
	Category   string
	Difficulty string
	Tags       []string
	Author     string
	ReadTime   int
	CreatedAt  string

	// Seq is the corpus-order sequence number assigned at first ingest.
	// It is the deterministic tie-break for equal similarity scores.
	Seq int64
}

// EmbeddingText returns the text that is embedded for this item.
// Queries are matched against this combined title+body representation,
// so ingest and search must both use it.
func (c ContentItem) EmbeddingText() string {
	return c.Title + " " + c.Body
}

// Validate checks the fields required before ingestion.
func (c ContentItem) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}
	if len(c.Body) > MaxBodyLength {
		return fmt.Errorf("%w: body exceeds %d characters", ErrInvalidRequest, MaxBodyLength)
	}
	if c.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidRequest)
	}
	return nil
}
