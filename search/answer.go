package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/docuquery/policy-search/domain"
	"github.com/docuquery/policy-search/llm"
	"github.com/docuquery/policy-search/prompts"
	"go.uber.org/zap"
)

const (
	answerTemperature = 0.3
	answerMaxTokens   = 4000
)

// Answerer turns retrieved chunks into a grounded answer with citations.
// It implements domain.Summarizer.
type Answerer struct {
	client llm.LLMClient
	retry  RetryPolicy
}

// RetryPolicy bounds the LLM call retries. Intervals are injectable so
// tests do not wait on real backoff.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 4 * time.Second, MaxInterval: 10 * time.Second}
}

func ProvideAnswerer(client llm.LLMClient) *Answerer {
	return &Answerer{client: client, retry: DefaultRetryPolicy()}
}

func (a *Answerer) WithRetryPolicy(retry RetryPolicy) *Answerer {
	a.retry = retry
	return a
}

// Summarize builds a numbered context block from the results and asks the
// LLM for an answer. Sources are deduplicated from result metadata in
// first-seen order.
func (a *Answerer) Summarize(ctx context.Context, query string, results []domain.SearchResult) (domain.Answer, error) {
	if len(results) == 0 {
		return domain.Answer{
			Text:         "No relevant documents were found to answer this question.",
			NumDocuments: 0,
		}, nil
	}

	system, user, err := prompts.RenderAnswerPrompt(prompts.AnswerPromptData{
		Query:   query,
		Context: buildContext(results),
	})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("failed to render answer prompt: %w", err)
	}

	var answer strings.Builder
	call := func() error {
		answer.Reset()
		return a.client.GenerateInference(ctx,
			[]llm.Message{{Role: "user", Content: user}},
			func(chunk string) error {
				answer.WriteString(chunk)
				return nil
			},
			llm.WithSystemPrompt(system),
			llm.WithTemperature(answerTemperature),
			llm.WithMaxTokens(answerMaxTokens))
	}

	if err := backoff.Retry(call, a.newBackOff(ctx)); err != nil {
		logger.Error("LLM answer generation failed", zap.String("query", query), zap.Error(err))
		return domain.Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	return domain.Answer{
		Text:         answer.String(),
		Sources:      collectSources(results),
		NumDocuments: len(results),
	}, nil
}

func (a *Answerer) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retry.InitialInterval
	b.MaxInterval = a.retry.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.retry.MaxAttempts-1)), ctx)
}

func buildContext(results []domain.SearchResult) string {
	var sb strings.Builder
	for i, res := range results {
		source := res.Metadata[domain.SourceKey]
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&sb, "[Document %d from %s]\n%s\n\n", i+1, source, res.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func collectSources(results []domain.SearchResult) []string {
	seen := make(map[string]bool)
	sources := make([]string, 0, len(results))
	for _, res := range results {
		source := res.Metadata[domain.SourceKey]
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return sources
}
