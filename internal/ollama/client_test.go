package ollama

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentEmbedder mocks the langchaingo embedder
type MockDocumentEmbedder struct {
	mock.Mock
}

func (m *MockDocumentEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func newTestClient(e DocumentEmbedder, dimensions int) *Client {
	return &Client{embedder: e, dimensions: dimensions, logger: slog.Default()}
}

func TestClient_Embed(t *testing.T) {
	tests := []struct {
		name       string
		dimensions int
		texts      []string
		vectors    [][]float32
		apiErr     error
		want       [][]float32
		errMsg     string
	}{
		{
			name:    "success",
			texts:   []string{"a", "b"},
			vectors: [][]float32{{1, 2}, {3, 4}},
			want:    [][]float32{{1, 2}, {3, 4}},
		},
		{
			name:   "provider error",
			texts:  []string{"a"},
			apiErr: errors.New("connection refused"),
			errMsg: "ollama embedding failed: connection refused",
		},
		{
			name:    "short response",
			texts:   []string{"a", "b"},
			vectors: [][]float32{{1}},
			errMsg:  "expected 2 embeddings, got 1",
		},
		{
			name:       "wrong dimensions",
			dimensions: 3,
			texts:      []string{"a"},
			vectors:    [][]float32{{1, 2}},
			errMsg:     "has 2 dimensions, expected 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := new(MockDocumentEmbedder)
			if tt.apiErr != nil {
				embedder.On("EmbedDocuments", mock.Anything, tt.texts).Return(nil, tt.apiErr)
			} else {
				embedder.On("EmbedDocuments", mock.Anything, tt.texts).Return(tt.vectors, nil)
			}

			got, err := newTestClient(embedder, tt.dimensions).Embed(context.Background(), tt.texts)

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			embedder.AssertExpectations(t)
		})
	}
}

func TestClient_Embed_NoTexts(t *testing.T) {
	embedder := new(MockDocumentEmbedder)

	got, err := newTestClient(embedder, 0).Embed(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
	embedder.AssertNotCalled(t, "EmbedDocuments", mock.Anything, mock.Anything)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(Config{}, nil)

	require.NoError(t, err)
	assert.NotNil(t, client.embedder)
	assert.Zero(t, client.dimensions)
}
