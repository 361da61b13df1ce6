//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/cloo-solutions/wizvec/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimensions = 768

func testVector(seed float32) []float32 {
	v := make([]float32, testDimensions)
	for i := range v {
		v[i] = seed
	}
	return v
}

func testChunk(id, text string, seed float32) domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		Category:   "quest",
		Title:      text + "...",
		Content:    fmt.Sprintf("Quest Text: %s\nQuest ID: %s", text, id),
		SourceID:   id,
		SourceFile: domain.DeriveSourceFile(id),
		Metadata:   map[string]any{"type": "dialogue", "source_category": "Quests"},
		Embedding:  testVector(seed),
	}
}

func TestKnowledgeChunkRepository(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)

	repo := NewKnowledgeChunkRepository(pool, "")

	cases := []struct {
		name string
		run  func(t *testing.T, ctx context.Context, repo *KnowledgeChunkRepository)
	}{
		{"UpsertChunks", testUpsertChunks},
		{"UpsertChunks_Idempotent", testUpsertChunksIdempotent},
		{"UpsertChunks_BatchIsAtomic", testUpsertChunksBatchIsAtomic},
		{"GetBySourceID_NotFound", testGetBySourceIDNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, testutil.TruncateChunks(ctx, pool, DefaultTable))
			tc.run(t, ctx, repo)
		})
	}
}

func testUpsertChunks(t *testing.T, ctx context.Context, repo *KnowledgeChunkRepository) {
	err := repo.UpsertChunks(ctx, []domain.KnowledgeChunk{
		testChunk("Q1::fileA", "Find the lost pet", 0.1),
		testChunk("Q2::fileA", "Defeat the troll", 0.2),
	})
	require.NoError(t, err)

	n, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.GetBySourceID(ctx, "Q1::fileA")
	require.NoError(t, err)
	assert.Equal(t, "quest", got.Category)
	assert.Equal(t, "Q1", got.SourceFile)
	assert.Equal(t, "Quest Text: Find the lost pet\nQuest ID: Q1::fileA", got.Content)
	assert.Equal(t, "dialogue", got.Metadata["type"])
	assert.Equal(t, "Quests", got.Metadata["source_category"])
	assert.Len(t, got.Embedding, testDimensions)
	assert.InDelta(t, 0.1, got.Embedding[0], 1e-6)
}

func testUpsertChunksIdempotent(t *testing.T, ctx context.Context, repo *KnowledgeChunkRepository) {
	require.NoError(t, repo.UpsertChunks(ctx, []domain.KnowledgeChunk{testChunk("Q1::fileA", "Find the lost pet", 0.1)}))
	first, err := repo.GetBySourceID(ctx, "Q1::fileA")
	require.NoError(t, err)

	require.NoError(t, repo.UpsertChunks(ctx, []domain.KnowledgeChunk{testChunk("Q1::fileA", "Find the lost cat", 0.3)}))

	n, err := repo.Count(ctx, "quest")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	second, err := repo.GetBySourceID(ctx, "Q1::fileA")
	require.NoError(t, err)
	assert.Contains(t, second.Content, "Find the lost cat")
	assert.InDelta(t, 0.3, second.Embedding[0], 1e-6)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func testUpsertChunksBatchIsAtomic(t *testing.T, ctx context.Context, repo *KnowledgeChunkRepository) {
	bad := testChunk("Q2::fileA", "Wrong vector size", 0.2)
	bad.Embedding = []float32{1, 2, 3}

	err := repo.UpsertChunks(ctx, []domain.KnowledgeChunk{
		testChunk("Q1::fileA", "Find the lost pet", 0.1),
		bad,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Q2::fileA")

	n, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testGetBySourceIDNotFound(t *testing.T, ctx context.Context, repo *KnowledgeChunkRepository) {
	_, err := repo.GetBySourceID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}
