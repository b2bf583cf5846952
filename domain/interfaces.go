package domain

import (
	"context"

	"github.com/SaiNageswarS/go-collection-boot/async"
)

// TextExtractor turns one file into plain text. Ordinary malformed-input
// conditions surface as an error return, never a panic.
type TextExtractor interface {
	Extract(ctx context.Context, filePath string) (string, error)
}

// Embedder produces one vector per input text. Implementations honor a
// bounded batch size internally; callers may pass any number of texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) <-chan async.Result[[][]float32]
	Dimensions() int
}

// IndexParams configure a tenant's vector index on first creation.
type IndexParams struct {
	Dimensions int
	Similarity string
}

// VectorRecord is what the index stores per chunk.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// VectorHit is one ranked query result. Vector is populated only when the
// query asked for it (MMR re-ranking needs candidate vectors).
type VectorHit struct {
	Record VectorRecord
	Score  float64
}

// QueryParams bound one index query. Filter is exact-match over metadata.
type QueryParams struct {
	K             int
	NumCandidates int
	Filter        map[string]string
	WithVectors   bool
}

// VectorIndex is the tenant-scoped nearest-neighbor store. EnsureIndex
// returns ErrIndexExists when the index is already present; callers treat
// that as success. Every read and write is scoped to a tenant.
type VectorIndex interface {
	EnsureIndex(ctx context.Context, tenant string, params IndexParams) error
	Upsert(ctx context.Context, tenant string, records []VectorRecord) ([]string, error)
	Query(ctx context.Context, tenant string, vector []float32, params QueryParams) ([]VectorHit, error)
}

// Summarizer answers a query from retrieved context documents.
type Summarizer interface {
	Summarize(ctx context.Context, query string, results []SearchResult) (Answer, error)
}
