package appconfig

import (
	"github.com/SaiNageswarS/go-api-boot/config"
)

type AppConfig struct {
	config.BootConfig `ini:",extends"`

	MongoURI  string `env:"MONGO-URI" ini:"mongo_uri"`
	RedisAddr string `env:"REDIS-ADDR" ini:"redis_addr"`
	HTTPPort  string `env:"HTTP-PORT" ini:"http_port"`

	LLMProvider    string `ini:"llm_provider"`
	AnswerModel    string `ini:"answer_model"`
	EmbeddingModel string `ini:"embedding_model"`
	EmbeddingDims  int    `ini:"embedding_dimensions"`
	Similarity     string `ini:"similarity"`

	ChunkSize    int    `ini:"chunk_size"`
	ChunkOverlap int    `ini:"chunk_overlap"`
	MinChunkSize int    `ini:"min_chunk_size"`
	Separator    string `ini:"separator"`

	BatchSize      int `ini:"batch_size"`
	MaxConcurrency int `ini:"max_concurrency"`
	ConvertWorkers int `ini:"convert_workers"`

	StagingRoot string `ini:"staging_root"`
}

// ApplyDefaults fills the deployment defaults for anything the ini file
// or environment left unset.
func (c *AppConfig) ApplyDefaults() {
	if c.HTTPPort == "" {
		c.HTTPPort = ":8081"
	}
	if c.LLMProvider == "" {
		c.LLMProvider = "anthropic"
	}
	if c.AnswerModel == "" {
		c.AnswerModel = "claude-3-5-sonnet-20241022"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "nomic-embed-text"
	}
	if c.EmbeddingDims == 0 {
		c.EmbeddingDims = 1536
	}
	if c.Similarity == "" {
		c.Similarity = "cosine"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 100
	}
	if c.Separator == "" {
		c.Separator = "\n\n"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.ConvertWorkers == 0 {
		c.ConvertWorkers = 2
	}
	if c.StagingRoot == "" {
		c.StagingRoot = "staging"
	}
}
