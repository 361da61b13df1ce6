package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultTable is the table created by the bundled migrations.
const DefaultTable = "wizard_knowledge"

// KnowledgeChunkRepository stores embedded knowledge chunks keyed by source id.
type KnowledgeChunkRepository struct {
	db    querier
	table string
}

// NewKnowledgeChunkRepository uses table, or DefaultTable when empty.
func NewKnowledgeChunkRepository(pool *pgxpool.Pool, table string) *KnowledgeChunkRepository {
	if table == "" {
		table = DefaultTable
	}
	return &KnowledgeChunkRepository{
		db:    pool,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

// UpsertChunks writes the batch in one transaction. A row whose source_id
// already exists is replaced, keeping its original created_at. Either every
// chunk of the batch is written or none is.
func (r *KnowledgeChunkRepository) UpsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s
			(category, title, content, source_id, source_file, metadata, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (source_id) DO UPDATE SET
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			source_file = EXCLUDED.source_file,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`,
		r.table,
	)

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(query,
			c.Category,
			c.Title,
			c.Content,
			c.SourceID,
			c.SourceFile,
			metadata,
			pgvector.NewVector(c.Embedding),
			now,
		)
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for _, c := range chunks {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("upsert %s: %w", c.SourceID, err)
			}
		}
		return results.Close()
	})
}

// GetBySourceID returns the stored chunk, or domain.ErrChunkNotFound.
func (r *KnowledgeChunkRepository) GetBySourceID(ctx context.Context, sourceID string) (*domain.KnowledgeChunk, error) {
	var c domain.KnowledgeChunk
	var embedding pgvector.Vector
	err := r.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT category, title, content, source_id, source_file, metadata, embedding, created_at, updated_at
		 FROM %s WHERE source_id = $1`, r.table),
		sourceID,
	).Scan(&c.Category, &c.Title, &c.Content, &c.SourceID, &c.SourceFile, &c.Metadata, &embedding, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	c.Embedding = embedding.Slice()
	return &c, nil
}

// Count returns the number of stored chunks, optionally for one category tag.
func (r *KnowledgeChunkRepository) Count(ctx context.Context, category string) (int64, error) {
	var n int64
	var err error
	if category == "" {
		err = r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n)
	} else {
		err = r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE category = $1`, r.table), category).Scan(&n)
	}
	return n, err
}
