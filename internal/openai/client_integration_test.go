//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Embed_RealAPI(t *testing.T) {
	apiKey := os.Getenv("WIZVEC_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("WIZVEC_OPENAI_API_KEY not set, skipping integration test")
	}

	client, err := NewClient(Config{APIKey: apiKey, Dimensions: DefaultEmbeddingDimensions})
	require.NoError(t, err)

	embeddings, err := client.Embed(context.Background(), []string{
		"Quest Text: Find the lost pet\nQuest ID: Q1::fileA",
		"Spell Text: Fire Cat deals 80 damage\nSpell ID: S1::spells",
	})

	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Len(t, embeddings[0], DefaultEmbeddingDimensions)
	assert.Len(t, embeddings[1], DefaultEmbeddingDimensions)
}
