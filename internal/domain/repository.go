package domain

import (
	"context"
	"time"
)

// StoreClient defines the capability surface required from each marketplace.
// Implementations wrap the store's remote catalog API; an empty review list
// is valid (no reviews), not an error.
type StoreClient interface {
	Store() Store
	Search(ctx context.Context, term, country string, limit int) ([]CatalogEntry, error)
	List(ctx context.Context, collection, country string, limit int) ([]CatalogEntry, error)
	Detail(ctx context.Context, id, country string) (*Record, error)
	Similar(ctx context.Context, id, country string) ([]CatalogEntry, error)
	Reviews(ctx context.Context, id, country string, limit int) ([]string, error)
}

// DetailCache caches fetched detail records to cut repeat upstream lookups.
// Implementations must return copies; callers attach per-request fields
// (reviews) to the records they receive.
type DetailCache interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, rec *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ObjectStore defines the interface for uploading artifacts to remote storage.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// TransformRunner invokes the external data-cleaning process on a local file.
type TransformRunner interface {
	Run(ctx context.Context, inputPath, outputPath string) error
}
