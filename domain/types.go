package domain

// Metadata keys every stored chunk must carry. TenantIDKey is the isolation
// boundary; a chunk without it never reaches the index.
const (
	TenantIDKey     = "tenant_id"
	SourceKey       = "source"
	TypeKey         = "type"
	OriginalPathKey = "original_path"
)

// Document is one unit of extracted text waiting to be chunked.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Chunk is the unit of storage and retrieval. ID is a stable hash of
// tenant, source, position and content, so re-ingesting the same file
// upserts instead of duplicating.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// SearchResult is one retrieval hit, ephemeral and ordered by score.
type SearchResult struct {
	Content  string
	Metadata map[string]string
	Score    float64
}

// ConversionReport partitions a tenant's file set by extraction outcome.
type ConversionReport struct {
	Successful []string
	Failed     []string
	Total      int
}

// SplitStats describes one split run for observability. A run with no
// output chunks has a zero average, not an error.
type SplitStats struct {
	InputDocuments   int     `json:"input_documents"`
	OutputChunks     int     `json:"output_chunks"`
	TotalCharacters  int     `json:"total_characters"`
	AverageChunkSize float64 `json:"average_chunk_size"`
}

// ProcessingStats is the aggregate result of one ingestion run.
type ProcessingStats struct {
	Tenant          string     `json:"tenant_id"`
	PdfsProcessed   int        `json:"pdfs_processed"`
	PdfsFailed      int        `json:"pdfs_failed"`
	FailedFiles     []string   `json:"failed_files"`
	ChunksCreated   int        `json:"chunks_created"`
	DocumentsStored int        `json:"documents_stored"`
	Split           SplitStats `json:"processing_stats"`
}

// SearchMode selects the retrieval strategy.
type SearchMode string

const (
	SearchSimilarity SearchMode = "similarity"
	SearchThreshold  SearchMode = "similarity_threshold"
	SearchMMR        SearchMode = "mmr"
)

// Answer is the summarizer's response grounded on retrieved chunks.
type Answer struct {
	Text         string   `json:"answer"`
	Sources      []string `json:"sources"`
	NumDocuments int      `json:"num_documents"`
}
