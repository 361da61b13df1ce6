package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

// EmbeddingClient generates embeddings for an ordered batch of texts.
// The i-th vector returned must belong to the i-th text.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists chunks with create-or-replace semantics keyed by
// source id. A call must apply all chunks or none.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error
}

// embedBatch requests one embedding per chunk and attaches the vectors by position.
func embedBatch(ctx context.Context, client EmbeddingClient, chunks []domain.KnowledgeChunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		return asEmbeddingError(err)
	}
	if len(vectors) != len(texts) {
		return domain.EmbeddingServiceError(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return domain.EmbeddingServiceError(fmt.Errorf("empty embedding at position %d", i))
		}
		if len(v) != dim {
			return domain.EmbeddingServiceError(fmt.Errorf("embedding at position %d has %d dimensions, expected %d", i, len(v), dim))
		}
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

func asEmbeddingError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeEmbeddingService {
		return err
	}
	return domain.EmbeddingServiceError(err)
}

func asStoreError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeStoreWrite {
		return err
	}
	return domain.StoreWriteError(err)
}
