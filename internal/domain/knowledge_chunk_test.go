package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSourceFile(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"Q1::fileA", "Q1"},
		{"Quests/Main::Q1::x", "Quests/Main"},
		{"plain-id", "unknown"},
		{"::leading", ""},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveSourceFile(tt.id))
		})
	}
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *KnowledgeChunk
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid chunk",
			chunk:   &KnowledgeChunk{Category: "quest", SourceID: "Q1::fileA", Content: "Quest Text: x"},
			wantErr: false,
		},
		{
			name:    "missing source id",
			chunk:   &KnowledgeChunk{Category: "quest", Content: "Quest Text: x"},
			wantErr: true,
			errMsg:  "source id is required",
		},
		{
			name:    "blank content",
			chunk:   &KnowledgeChunk{Category: "quest", SourceID: "Q1", Content: "   "},
			wantErr: true,
			errMsg:  "content is required",
		},
		{
			name:    "missing category",
			chunk:   &KnowledgeChunk{SourceID: "Q1", Content: "text"},
			wantErr: true,
			errMsg:  "category is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.True(t, errors.Is(err, ErrInvalidChunk))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("run: %w", SourceUnavailable("missing.json", errors.New("no such file")))

	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrCodeSourceUnavailable, ErrorCode(err))
	assert.Contains(t, err.Error(), "no such file")
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ConfigurationError("missing api key")))
	assert.False(t, IsFatal(EmbeddingServiceError(errors.New("quota"))))
	assert.False(t, IsFatal(StoreWriteError(errors.New("timeout"))))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestKnowledgeBase_Lookup(t *testing.T) {
	kb := &KnowledgeBase{Categories: []Category{
		{Name: "Quests", Entries: []SourceEntry{{ID: "a", Text: "x"}}},
		{Name: "Spells"},
	}}

	c, ok := kb.Lookup("quests")
	assert.True(t, ok)
	assert.Equal(t, "Quests", c.Name)

	_, ok = kb.Lookup("Items")
	assert.False(t, ok)

	assert.Equal(t, []string{"Quests", "Spells"}, kb.CategoryNames())
	assert.Equal(t, 1, kb.TotalEntries())
}
