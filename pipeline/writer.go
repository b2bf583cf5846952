package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/SaiNageswarS/go-collection-boot/linq"
	"github.com/docuquery/policy-search/domain"
	"go.uber.org/zap"
)

// BatchWriter embeds and persists chunks to the tenant's vector index in
// bounded concurrent batches. Every chunk must already carry tenant_id
// metadata; anything else is rejected before the index sees it.
type BatchWriter struct {
	index          domain.VectorIndex
	embedder       domain.Embedder
	batchSize      int
	maxConcurrency int
	similarity     string
}

func ProvideBatchWriter(index domain.VectorIndex, embedder domain.Embedder, batchSize, maxConcurrency int, similarity string) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if similarity == "" {
		similarity = "cosine"
	}
	return &BatchWriter{
		index:          index,
		embedder:       embedder,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
		similarity:     similarity,
	}
}

// EnsureIndexReady creates the tenant's index on first use. The structured
// already-exists variant counts as success, so calling this twice is a no-op.
func (w *BatchWriter) EnsureIndexReady(ctx context.Context, tenant string) error {
	err := w.index.EnsureIndex(ctx, tenant, domain.IndexParams{
		Dimensions: w.embedder.Dimensions(),
		Similarity: w.similarity,
	})
	if errors.Is(err, domain.ErrIndexExists) {
		return nil
	}
	return err
}

// WriteBatches partitions chunks into batchSize groups and embeds+upserts
// each group, at most maxConcurrency groups in flight. Group order of
// completion is unspecified; callers observe only aggregate success. A
// failure in any group fails the whole call.
func (w *BatchWriter) WriteBatches(ctx context.Context, tenant string, chunks []domain.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	for _, chunk := range chunks {
		if chunk.Metadata[domain.TenantIDKey] != tenant {
			return nil, fmt.Errorf("%w: chunk %s for tenant %s", domain.ErrMissingTenant, chunk.ID, tenant)
		}
	}

	if err := w.EnsureIndexReady(ctx, tenant); err != nil {
		return nil, errors.New("failed to ensure vector index: " + err.Error())
	}

	logger.Info("Writing chunks in batches",
		zap.String("tenant", tenant),
		zap.Int("chunks", len(chunks)),
		zap.Int("batchSize", w.batchSize))

	sem := make(chan struct{}, w.maxConcurrency)
	var tasks []<-chan async.Result[[]string]
	for start := 0; start < len(chunks); start += w.batchSize {
		end := min(start+w.batchSize, len(chunks))
		batch := chunks[start:end]

		tasks = append(tasks, async.Go(func() ([]string, error) {
			sem <- struct{}{}
			defer func() { <-sem }()
			return w.writeBatch(ctx, tenant, batch)
		}))
	}

	batchIDs, err := async.AwaitAll(tasks...)
	if err != nil {
		logger.Error("Batch write failed", zap.String("tenant", tenant), zap.Error(err))
		return nil, err
	}

	return linq.Flatten(batchIDs), nil
}

func (w *BatchWriter) writeBatch(ctx context.Context, tenant string, batch []domain.Chunk) ([]string, error) {
	texts := linq.Map(batch, func(c domain.Chunk) string { return c.Text })

	vectors, err := async.Await(w.embedder.Embed(ctx, texts))
	if err != nil {
		return nil, errors.New("failed to embed batch: " + err.Error())
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}

	records := make([]domain.VectorRecord, 0, len(batch))
	for i, chunk := range batch {
		records = append(records, domain.VectorRecord{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Content:  chunk.Text,
			Metadata: chunk.Metadata,
		})
	}

	ids, err := w.index.Upsert(ctx, tenant, records)
	if err != nil {
		return nil, errors.New("failed to upsert batch: " + err.Error())
	}
	return ids, nil
}
