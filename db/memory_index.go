package db

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/docuquery/policy-search/domain"
)

// MemoryIndex is an in-process domain.VectorIndex with cosine scoring,
// used in tests and for local development without an Atlas cluster.
type MemoryIndex struct {
	mu      sync.RWMutex
	tenants map[string]map[string]domain.VectorRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{tenants: make(map[string]map[string]domain.VectorRecord)}
}

func (m *MemoryIndex) EnsureIndex(_ context.Context, tenant string, _ domain.IndexParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[tenant]; ok {
		return domain.ErrIndexExists
	}
	m.tenants[tenant] = make(map[string]domain.VectorRecord)
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, tenant string, records []domain.VectorRecord) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.tenants[tenant]
	if !ok {
		bucket = make(map[string]domain.VectorRecord)
		m.tenants[tenant] = bucket
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		bucket[record.ID] = record
		ids = append(ids, record.ID)
	}
	return ids, nil
}

func (m *MemoryIndex) Query(_ context.Context, tenant string, vector []float32, params domain.QueryParams) ([]domain.VectorHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []domain.VectorHit
	for _, record := range m.tenants[tenant] {
		if !matchesFilter(record.Metadata, params.Filter) {
			continue
		}
		hit := domain.VectorHit{
			Record: domain.VectorRecord{
				ID:       record.ID,
				Content:  record.Content,
				Metadata: record.Metadata,
			},
			Score: CosineSimilarity(vector, record.Vector),
		}
		if params.WithVectors {
			hit.Record.Vector = record.Vector
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if params.K > 0 && len(hits) > params.K {
		hits = hits[:params.K]
	}
	return hits, nil
}

// Count reports stored records for a tenant; test helper.
func (m *MemoryIndex) Count(tenant string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tenants[tenant])
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
