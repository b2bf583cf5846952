package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/SaiNageswarS/go-api-boot/config"
	"github.com/SaiNageswarS/go-api-boot/dotenv"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/docuquery/policy-search/appconfig"
	"github.com/docuquery/policy-search/convert"
	"github.com/docuquery/policy-search/db"
	"github.com/docuquery/policy-search/jobs"
	"github.com/docuquery/policy-search/llm"
	"github.com/docuquery/policy-search/pipeline"
	"github.com/docuquery/policy-search/search"
	"github.com/docuquery/policy-search/services"
	"github.com/ollama/ollama/api"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

func main() {
	dotenv.LoadEnv()

	// load config file
	ccfgg := &appconfig.AppConfig{}
	err := config.LoadConfig("config.ini", ccfgg)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	ccfgg.ApplyDefaults()

	mongoClient, ok := odm.ProvideMongoClient().(*mongo.Client)
	if !ok {
		logger.Fatal("Failed to connect to MongoDB")
	}

	ollamaClient, err := api.ClientFromEnvironment()
	if err != nil {
		logger.Fatal("Failed to create Ollama client", zap.Error(err))
	}

	chatClient := llm.NewChatClient(ccfgg.LLMProvider, ccfgg.AnswerModel)

	var jobStore jobs.Store
	if ccfgg.RedisAddr != "" {
		jobStore = jobs.ProvideRedisStore(redis.NewClient(&redis.Options{Addr: ccfgg.RedisAddr}))
		logger.Info("Using redis job store", zap.String("addr", ccfgg.RedisAddr))
	} else {
		jobStore = jobs.ProvideMemoryStore()
	}

	index := db.ProvideMongoIndex(mongoClient)
	embedder := llm.ProvideOllamaEmbedder(ollamaClient, ccfgg.EmbeddingModel, ccfgg.EmbeddingDims, ccfgg.BatchSize)

	extractor := convert.ProvideMuPDFExtractor()
	orchestrator := convert.ProvideOrchestrator(ccfgg.StagingRoot, extractor, ccfgg.ConvertWorkers)

	writer := pipeline.ProvideBatchWriter(index, embedder, ccfgg.BatchSize, ccfgg.MaxConcurrency, ccfgg.Similarity)
	splitCfg := pipeline.NewSplitterConfig(ccfgg.ChunkSize, ccfgg.ChunkOverlap, ccfgg.MinChunkSize, ccfgg.Separator)
	ingestPipeline := pipeline.ProvidePipeline(orchestrator, writer, splitCfg)

	retrieval := search.ProvideRetrieval(index, embedder, ccfgg.Similarity)
	answerer := search.ProvideAnswerer(chatClient)
	searchService := search.ProvideService(retrieval, answerer)

	server := services.ProvideServer(
		services.ProvideIngestHandler(ingestPipeline, jobStore, ""),
		services.ProvideJobHandler(jobStore),
		services.ProvideSearchHandler(searchService),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting search service", zap.String("port", ccfgg.HTTPPort))
	if err := server.Run(ctx, ccfgg.HTTPPort); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
