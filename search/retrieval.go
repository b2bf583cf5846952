package search

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/docuquery/policy-search/domain"
	"go.uber.org/zap"
)

const maxFetchK = 100

// Options tune one search call. Filters add exact-match metadata
// constraints; they can never override the tenant constraint.
type Options struct {
	K              int
	Mode           domain.SearchMode
	Filters        map[string]string
	ScoreThreshold float64
	MMRLambda      float64
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = 4
	}
	if o.Mode == "" {
		o.Mode = domain.SearchSimilarity
	}
	if o.MMRLambda <= 0 || o.MMRLambda > 1 {
		o.MMRLambda = 0.5
	}
	return o
}

// Retrieval answers similarity queries against a tenant's index.
type Retrieval struct {
	index      domain.VectorIndex
	embedder   domain.Embedder
	similarity string
}

func ProvideRetrieval(index domain.VectorIndex, embedder domain.Embedder, similarity string) *Retrieval {
	if similarity == "" {
		similarity = "cosine"
	}
	return &Retrieval{index: index, embedder: embedder, similarity: similarity}
}

// Search embeds the query and runs the selected mode against the tenant's
// index. tenant_id is injected into the filter after merging caller filters,
// so a conflicting caller value is overwritten, never honored. Results come
// back in descending relevance order; failures are logged and returned.
func (r *Retrieval) Search(ctx context.Context, tenant, query string, opts Options) ([]domain.SearchResult, error) {
	if tenant == "" {
		return nil, errors.New("tenant cannot be empty")
	}
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	opts = opts.withDefaults()

	if err := r.ensureReady(ctx, tenant); err != nil {
		return nil, err
	}

	filter := make(map[string]string, len(opts.Filters)+1)
	maps.Copy(filter, opts.Filters)
	filter[domain.TenantIDKey] = tenant

	vectors, err := async.Await(r.embedder.Embed(ctx, []string{query}))
	if err != nil || len(vectors) == 0 {
		logger.Error("Failed to embed query", zap.String("tenant", tenant), zap.Error(err))
		return nil, fmt.Errorf("failed to embed query for tenant %s: %w", tenant, err)
	}
	queryVector := vectors[0]

	var hits []domain.VectorHit
	switch opts.Mode {
	case domain.SearchMMR:
		hits, err = r.mmrSearch(ctx, tenant, queryVector, filter, opts)
	case domain.SearchThreshold:
		hits, err = r.index.Query(ctx, tenant, queryVector, domain.QueryParams{K: opts.K, Filter: filter})
		if err == nil {
			hits = filterByThreshold(hits, opts.ScoreThreshold)
		}
	case domain.SearchSimilarity:
		hits, err = r.index.Query(ctx, tenant, queryVector, domain.QueryParams{K: opts.K, Filter: filter})
	default:
		return nil, fmt.Errorf("unknown search mode %q", opts.Mode)
	}
	if err != nil {
		logger.Error("Search failed",
			zap.String("tenant", tenant),
			zap.String("mode", string(opts.Mode)),
			zap.Error(err))
		return nil, fmt.Errorf("search failed for tenant %s: %w", tenant, err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, domain.SearchResult{
			Content:  hit.Record.Content,
			Metadata: hit.Record.Metadata,
			Score:    hit.Score,
		})
	}
	return results, nil
}

func (r *Retrieval) mmrSearch(ctx context.Context, tenant string, queryVector []float32, filter map[string]string, opts Options) ([]domain.VectorHit, error) {
	fetchK := min(opts.K*4, maxFetchK)
	candidates, err := r.index.Query(ctx, tenant, queryVector, domain.QueryParams{
		K:           fetchK,
		Filter:      filter,
		WithVectors: true,
	})
	if err != nil {
		return nil, err
	}
	return maximalMarginalRelevance(queryVector, candidates, opts.K, opts.MMRLambda), nil
}

func (r *Retrieval) ensureReady(ctx context.Context, tenant string) error {
	err := r.index.EnsureIndex(ctx, tenant, domain.IndexParams{
		Dimensions: r.embedder.Dimensions(),
		Similarity: r.similarity,
	})
	if errors.Is(err, domain.ErrIndexExists) {
		return nil
	}
	return err
}

func filterByThreshold(hits []domain.VectorHit, threshold float64) []domain.VectorHit {
	out := make([]domain.VectorHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= threshold {
			out = append(out, hit)
		}
	}
	return out
}
