// Package source loads knowledge snapshots from the local filesystem or S3.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

const s3Scheme = "s3://"

// ObjectStore opens objects in remote storage.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Reader loads a knowledge base from a location. Locations starting with
// s3:// are fetched from the object store, anything else is a file path.
type Reader struct {
	objects ObjectStore
	logger  *slog.Logger
}

// NewReader creates a Reader. objects may be nil when only local files are used.
func NewReader(objects ObjectStore, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{objects: objects, logger: logger}
}

// Load reads and decodes the snapshot at location. Every failure is a
// SOURCE_UNAVAILABLE domain error.
func (r *Reader) Load(ctx context.Context, location string) (*domain.KnowledgeBase, error) {
	if strings.TrimSpace(location) == "" {
		return nil, domain.SourceUnavailable(location, fmt.Errorf("no source location given"))
	}

	rc, err := r.open(ctx, location)
	if err != nil {
		return nil, domain.SourceUnavailable(location, err)
	}
	defer rc.Close()

	kb, err := Decode(rc)
	if err != nil {
		return nil, domain.SourceUnavailable(location, fmt.Errorf("malformed snapshot: %w", err))
	}

	r.logger.Info("loaded knowledge base",
		"location", location,
		"categories", kb.CategoryNames(),
		"entries", kb.TotalEntries(),
	)
	return kb, nil
}

func (r *Reader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		return os.Open(location)
	}
	if r.objects == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	return r.objects.Open(ctx, bucket, key)
}

// ParseS3Location splits s3://bucket/key into its parts.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(location, s3Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q, expected s3://bucket/key", location)
	}
	return bucket, key, nil
}
