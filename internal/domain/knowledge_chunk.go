package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SourceFileSeparator splits a source id into its provenance prefix.
	SourceFileSeparator = "::"
	// UnknownSourceFile is used when a source id has no separator.
	UnknownSourceFile = "unknown"
)

// KnowledgeChunk represents a normalized, search-ready segment of the knowledge base.
type KnowledgeChunk struct {
	Category   string
	Title      string
	Content    string
	SourceID   string
	SourceFile string
	Metadata   map[string]any
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasEmbedding reports whether the embedding step has run for this chunk.
func (c *KnowledgeChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// DeriveSourceFile returns the part of id before the first "::", or "unknown".
func DeriveSourceFile(id string) string {
	prefix, _, found := strings.Cut(id, SourceFileSeparator)
	if !found {
		return UnknownSourceFile
	}
	return prefix
}

// ValidateChunk checks the invariants a chunk must satisfy before it is written.
func ValidateChunk(c *KnowledgeChunk) error {
	if c.SourceID == "" {
		return NewDomainErrorWithCause(ErrCodeInvalidChunk, "invalid chunk", fmt.Errorf("source id is required"))
	}
	if strings.TrimSpace(c.Content) == "" {
		return NewDomainErrorWithCause(ErrCodeInvalidChunk, "invalid chunk", fmt.Errorf("content is required for %s", c.SourceID))
	}
	if c.Category == "" {
		return NewDomainErrorWithCause(ErrCodeInvalidChunk, "invalid chunk", fmt.Errorf("category is required for %s", c.SourceID))
	}
	return nil
}
