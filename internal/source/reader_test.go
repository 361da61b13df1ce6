package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectStore mocks S3 access
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func writeSnapshot(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDecode_PreservesOrder(t *testing.T) {
	body := `{"version": 3, "data": {
		"Quests": {"Q3::b": "third", "Q1::a": "first", "Q2::a": "second"},
		"Spells": {"S1": "Fireball"}
	}}`

	kb, err := Decode(strings.NewReader(body))
	require.NoError(t, err)

	require.Len(t, kb.Categories, 2)
	assert.Equal(t, "Quests", kb.Categories[0].Name)
	assert.Equal(t, []domain.SourceEntry{
		{ID: "Q3::b", Text: "third"},
		{ID: "Q1::a", Text: "first"},
		{ID: "Q2::a", Text: "second"},
	}, kb.Categories[0].Entries)
	assert.Equal(t, "Spells", kb.Categories[1].Name)
}

func TestDecode_MissingDataIsEmpty(t *testing.T) {
	kb, err := Decode(strings.NewReader(`{"meta": {"source": "wad"}}`))
	require.NoError(t, err)
	assert.Empty(t, kb.Categories)
	assert.Equal(t, 0, kb.TotalEntries())
}

func TestDecode_NullData(t *testing.T) {
	kb, err := Decode(strings.NewReader(`{"data": null}`))
	require.NoError(t, err)
	assert.Empty(t, kb.Categories)
}

func TestDecode_DuplicateIDKeepsPosition(t *testing.T) {
	kb, err := Decode(strings.NewReader(`{"data": {"Quests": {"a": "one", "b": "two", "a": "three"}}}`))
	require.NoError(t, err)

	assert.Equal(t, []domain.SourceEntry{
		{ID: "a", Text: "three"},
		{ID: "b", Text: "two"},
	}, kb.Categories[0].Entries)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"root array", `[1, 2]`},
		{"data not object", `{"data": [1]}`},
		{"category not object", `{"data": {"Quests": "x"}}`},
		{"entry not string", `{"data": {"Quests": {"Q1": 42}}}`},
		{"truncated", `{"data": {"Quests": {"Q1": "x"`},
		{"trailing garbage", `{"data": {}} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestReader_Load_LocalFile(t *testing.T) {
	path := writeSnapshot(t, `{"data": {"Quests": {"Q1::fileA": "Find the lost pet"}}}`)
	reader := NewReader(nil, nil)

	kb, err := reader.Load(context.Background(), path)
	require.NoError(t, err)

	c, ok := kb.Lookup("Quests")
	require.True(t, ok)
	assert.Equal(t, []domain.SourceEntry{{ID: "Q1::fileA", Text: "Find the lost pet"}}, c.Entries)
}

func TestReader_Load_MissingFile(t *testing.T) {
	reader := NewReader(nil, nil)

	_, err := reader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReader_Load_MalformedFile(t *testing.T) {
	path := writeSnapshot(t, `{"data": {"Quests": [}`)
	reader := NewReader(nil, nil)

	_, err := reader.Load(context.Background(), path)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "malformed snapshot")
}

func TestReader_Load_S3(t *testing.T) {
	store := new(MockObjectStore)
	ctx := context.Background()
	body := io.NopCloser(strings.NewReader(`{"data": {"Quests": {"Q1": "hello world"}}}`))
	store.On("Open", ctx, "snapshots", "wiz/extracted_spells.json").Return(body, nil)

	reader := NewReader(store, nil)
	kb, err := reader.Load(ctx, "s3://snapshots/wiz/extracted_spells.json")

	require.NoError(t, err)
	assert.Equal(t, 1, kb.TotalEntries())
	store.AssertExpectations(t)
}

func TestReader_Load_S3Error(t *testing.T) {
	store := new(MockObjectStore)
	store.On("Open", mock.Anything, "snapshots", "missing.json").Return(nil, errors.New("NoSuchKey"))

	reader := NewReader(store, nil)
	_, err := reader.Load(context.Background(), "s3://snapshots/missing.json")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "NoSuchKey")
}

func TestReader_Load_S3NotConfigured(t *testing.T) {
	reader := NewReader(nil, nil)

	_, err := reader.Load(context.Background(), "s3://snapshots/data.json")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "object storage is not configured")
}

func TestParseS3Location(t *testing.T) {
	bucket, key, err := ParseS3Location("s3://b/path/to/file.json")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "path/to/file.json", key)

	for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := ParseS3Location(bad)
		assert.Error(t, err, bad)
	}
}
