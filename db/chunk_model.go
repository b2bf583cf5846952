package db

import (
	"github.com/SaiNageswarS/go-api-boot/odm"
)

// EmbeddingDimensions is fixed per deployment; the vector index is built
// against it and cannot change without a re-index.
const EmbeddingDimensions = 1536

const (
	VectorIndexName = "chunkEmbeddingIndex"
	VectorPath      = "embedding"
	TermIndexName   = "chunkContentIndex"
)

// ChunkDoc is a stored retrieval chunk. Each tenant has its own database,
// so tenant isolation is structural; tenant_id is additionally kept inside
// Metadata as defense in depth.
type ChunkDoc struct {
	ChunkID   string            `json:"chunkId" bson:"_id"`
	Content   string            `json:"content" bson:"content"`
	Metadata  map[string]string `json:"metadata" bson:"metadata"`
	Embedding []float32         `json:"-" bson:"embedding"`
	CreatedOn int64             `json:"createdOn" bson:"createdOn"`
}

func (m ChunkDoc) Id() string { return m.ChunkID }

func (m ChunkDoc) CollectionName() string { return "chunks" }

// Indexes
func (m ChunkDoc) VectorIndexSpecs() []odm.VectorIndexSpec {
	return []odm.VectorIndexSpec{
		{
			Name:          VectorIndexName,
			Path:          VectorPath,
			Type:          "vector",
			NumDimensions: EmbeddingDimensions,
			Similarity:    "cosine",
			Quantization:  "scalar",
		},
	}
}

func (m ChunkDoc) TermSearchIndexSpecs() []odm.TermSearchIndexSpec {
	return []odm.TermSearchIndexSpec{
		{
			Name:  TermIndexName,
			Paths: []string{"content"},
		},
	}
}
