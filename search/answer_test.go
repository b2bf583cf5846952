package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docuquery/policy-search/domain"
	"github.com/docuquery/policy-search/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLLM fails the first failCalls invocations, then streams response.
type mockLLM struct {
	mu        sync.Mutex
	response  string
	failCalls int
	calls     int
	lastUser  string
	lastOpts  []llm.LLMOption
}

func (m *mockLLM) GenerateInference(_ context.Context, messages []llm.Message, callback func(chunk string) error, opts ...llm.LLMOption) error {
	m.mu.Lock()
	m.calls++
	shouldFail := m.failCalls > 0
	if shouldFail {
		m.failCalls--
	}
	if len(messages) > 0 {
		m.lastUser = messages[len(messages)-1].Content
	}
	m.lastOpts = opts
	m.mu.Unlock()

	if shouldFail {
		return errors.New("model overloaded")
	}
	return callback(m.response)
}

func (m *mockLLM) GetModel() string { return "mock-model" }

func fastAnswerRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{Content: "annual leave accrues monthly", Metadata: map[string]string{domain.SourceKey: "leave.pdf"}, Score: 0.97},
		{Content: "carry-over of unused leave", Metadata: map[string]string{domain.SourceKey: "leave.pdf"}, Score: 0.91},
		{Content: "expense reimbursement rules", Metadata: map[string]string{domain.SourceKey: "expense.pdf"}, Score: 0.82},
	}
}

func TestSummarizeEmptyResults(t *testing.T) {
	client := &mockLLM{response: "should not be called"}
	a := ProvideAnswerer(client).WithRetryPolicy(fastAnswerRetry())

	answer, err := a.Summarize(context.Background(), "how does leave work?", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, answer.NumDocuments)
	assert.Contains(t, answer.Text, "No relevant documents")
	assert.Equal(t, 0, client.calls)
}

func TestSummarizeBuildsGroundedAnswer(t *testing.T) {
	client := &mockLLM{response: "Leave accrues monthly and unused days carry over."}
	a := ProvideAnswerer(client).WithRetryPolicy(fastAnswerRetry())

	answer, err := a.Summarize(context.Background(), "how does leave work?", sampleResults())
	require.NoError(t, err)

	assert.Equal(t, "Leave accrues monthly and unused days carry over.", answer.Text)
	assert.Equal(t, 3, answer.NumDocuments)
	assert.Equal(t, []string{"leave.pdf", "expense.pdf"}, answer.Sources)

	// The user prompt numbers every retrieved document with its source.
	assert.Contains(t, client.lastUser, "[Document 1 from leave.pdf]")
	assert.Contains(t, client.lastUser, "[Document 3 from expense.pdf]")
	assert.Contains(t, client.lastUser, "how does leave work?")
}

func TestSummarizeRetriesTransientFailures(t *testing.T) {
	client := &mockLLM{response: "answer", failCalls: 2}
	a := ProvideAnswerer(client).WithRetryPolicy(fastAnswerRetry())

	answer, err := a.Summarize(context.Background(), "query", sampleResults())
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Text)
	assert.Equal(t, 3, client.calls)
}

func TestSummarizeExhaustsRetries(t *testing.T) {
	client := &mockLLM{response: "answer", failCalls: 10}
	a := ProvideAnswerer(client).WithRetryPolicy(fastAnswerRetry())

	_, err := a.Summarize(context.Background(), "query", sampleResults())
	assert.Error(t, err)
	assert.Equal(t, 3, client.calls)
}
