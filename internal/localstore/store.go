// Package localstore keeps embedded knowledge chunks in an embedded BadgerDB,
// for running the pipeline without Postgres.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const chunkPrefix = "chunk/"

// Store is a ChunkStore backed by BadgerDB. Keys are chunk/<source id>.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the database in dir, creating it if needed. An empty dir opens
// an in-memory database.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger.With("component", "badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	Category   string         `json:"category"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	SourceID   string         `json:"source_id"`
	SourceFile string         `json:"source_file"`
	Metadata   map[string]any `json:"metadata"`
	Embedding  []float32      `json:"embedding"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func chunkKey(sourceID string) []byte {
	return []byte(chunkPrefix + sourceID)
}

// UpsertChunks writes the batch in a single transaction. Existing rows keep
// their creation time.
func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, c := range chunks {
			key := chunkKey(c.SourceID)

			createdAt := now
			existing, err := getRecord(txn, key)
			switch {
			case err == nil:
				createdAt = existing.CreatedAt
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			value, err := json.Marshal(record{
				Category:   c.Category,
				Title:      c.Title,
				Content:    c.Content,
				SourceID:   c.SourceID,
				SourceFile: c.SourceFile,
				Metadata:   c.Metadata,
				Embedding:  c.Embedding,
				CreatedAt:  createdAt,
				UpdatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("encode %s: %w", c.SourceID, err)
			}
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("upsert %s: %w", c.SourceID, err)
			}
		}
		return nil
	})
}

// GetBySourceID returns the stored chunk, or domain.ErrChunkNotFound.
func (s *Store) GetBySourceID(_ context.Context, sourceID string) (*domain.KnowledgeChunk, error) {
	var rec *record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, chunkKey(sourceID))
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return rec.toChunk(), nil
}

// Count returns the number of stored chunks, optionally for one category tag.
func (s *Store) Count(_ context.Context, category string) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = category != ""
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if category == "" {
				n++
				continue
			}
			var rec record
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.Category == category {
				n++
			}
		}
		return nil
	})
	return n, err
}

func getRecord(txn *badger.Txn, key []byte) (*record, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &rec, nil
}

func (r *record) toChunk() *domain.KnowledgeChunk {
	return &domain.KnowledgeChunk{
		Category:   r.Category,
		Title:      r.Title,
		Content:    r.Content,
		SourceID:   r.SourceID,
		SourceFile: r.SourceFile,
		Metadata:   r.Metadata,
		Embedding:  r.Embedding,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
