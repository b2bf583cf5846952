package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/ollama/ollama/api"
)

// OllamaEmbedder embeds text batches through a local Ollama server. The
// deployment batch size bounds how many texts go into one API call.
type OllamaEmbedder struct {
	client     *api.Client
	model      string
	dimensions int
	batchSize  int
}

func ProvideOllamaEmbedder(client *api.Client, model string, dimensions, batchSize int) *OllamaEmbedder {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OllamaEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}
}

func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) <-chan async.Result[[][]float32] {
	return async.Go(func() ([][]float32, error) {
		out := make([][]float32, 0, len(texts))

		for start := 0; start < len(texts); start += e.batchSize {
			end := min(start+e.batchSize, len(texts))

			resp, err := e.client.Embed(ctx, &api.EmbedRequest{
				Model: e.model,
				Input: texts[start:end],
			})
			if err != nil {
				return nil, errors.New("failed to embed batch: " + err.Error())
			}
			if len(resp.Embeddings) != end-start {
				return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Embeddings), end-start)
			}

			out = append(out, resp.Embeddings...)
		}

		return out, nil
	})
}
