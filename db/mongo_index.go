package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/docuquery/policy-search/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// MongoIndex implements domain.VectorIndex over MongoDB Atlas vector
// search. One database per tenant via the ODM keeps isolation structural
// rather than filter-based.
type MongoIndex struct {
	client  *mongo.Client
	ensured sync.Map // tenant -> struct{}
}

func ProvideMongoIndex(client *mongo.Client) *MongoIndex {
	return &MongoIndex{client: client}
}

func (m *MongoIndex) EnsureIndex(ctx context.Context, tenant string, params domain.IndexParams) error {
	// The Atlas index spec on ChunkDoc is built for EmbeddingDimensions; a
	// deployment configured for anything else must fail loudly, not store
	// vectors the index cannot search.
	if params.Dimensions != 0 && params.Dimensions != EmbeddingDimensions {
		return fmt.Errorf("embedder produces %d dimensions but the vector index is built for %d",
			params.Dimensions, EmbeddingDimensions)
	}

	if _, ok := m.ensured.Load(tenant); ok {
		return domain.ErrIndexExists
	}

	if err := InitTenantDB(ctx, m.client, tenant); err != nil {
		return errors.New("failed to create vector index: " + err.Error())
	}

	m.ensured.Store(tenant, struct{}{})
	logger.Info("Vector index ready",
		zap.String("tenant", tenant),
		zap.Int("dimensions", params.Dimensions),
		zap.String("similarity", params.Similarity))
	return nil
}

func (m *MongoIndex) Upsert(ctx context.Context, tenant string, records []domain.VectorRecord) ([]string, error) {
	collection := odmCollection(m.client, tenant)

	var tasks []<-chan async.Result[struct{}]
	now := time.Now().Unix()
	for _, record := range records {
		doc := ChunkDoc{
			ChunkID:   record.ID,
			Content:   record.Content,
			Metadata:  record.Metadata,
			Embedding: record.Vector,
			CreatedOn: now,
		}
		tasks = append(tasks, collection.Save(ctx, doc))
	}

	if _, err := async.AwaitAll(tasks...); err != nil {
		return nil, errors.New("failed to save chunks: " + err.Error())
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

func (m *MongoIndex) Query(ctx context.Context, tenant string, vector []float32, params domain.QueryParams) ([]domain.VectorHit, error) {
	collection := odmCollection(m.client, tenant)

	// Metadata filtering happens after the ANN query, so over-fetch when a
	// filter narrows the result set.
	fetchK := params.K
	if len(params.Filter) > 0 && fetchK < 100 {
		fetchK = min(params.K*4, 100)
	}
	numCandidates := params.NumCandidates
	if numCandidates < fetchK {
		numCandidates = fetchK * 10
	}

	hits, err := async.Await(collection.VectorSearch(ctx, vector, odmVectorParams(fetchK, numCandidates)))
	if err != nil {
		return nil, errors.New("vector query failed: " + err.Error())
	}

	out := make([]domain.VectorHit, 0, params.K)
	for _, hit := range hits {
		if !matchesFilter(hit.Doc.Metadata, params.Filter) {
			continue
		}
		record := domain.VectorRecord{
			ID:       hit.Doc.ChunkID,
			Content:  hit.Doc.Content,
			Metadata: hit.Doc.Metadata,
		}
		if params.WithVectors {
			record.Vector = hit.Doc.Embedding
		}
		// Hits arrive ranked; the exact cosine score is recomputed from the
		// stored embedding so thresholding and MMR see real similarities.
		out = append(out, domain.VectorHit{
			Record: record,
			Score:  CosineSimilarity(vector, hit.Doc.Embedding),
		})
		if len(out) == params.K {
			break
		}
	}
	return out, nil
}

func matchesFilter(meta, filter map[string]string) bool {
	for key, want := range filter {
		if meta[key] != want {
			return false
		}
	}
	return true
}
