package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docuquery/policy-search/convert"
	"github.com/docuquery/policy-search/db"
	"github.com/docuquery/policy-search/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExtractor returns canned text per base name and fails files listed
// in failures.
type stubExtractor struct {
	text     string
	failures map[string]bool
}

func (s *stubExtractor) Extract(_ context.Context, filePath string) (string, error) {
	name := filepath.Base(filePath)
	if s.failures[name] {
		return "", errors.New("extraction failed: " + name)
	}
	return s.text, nil
}

// flakyIndex fails the first failUpserts Upsert calls, then delegates.
type flakyIndex struct {
	*db.MemoryIndex
	mu          sync.Mutex
	failUpserts int
}

func (f *flakyIndex) Upsert(ctx context.Context, tenant string, records []domain.VectorRecord) ([]string, error) {
	f.mu.Lock()
	shouldFail := f.failUpserts > 0
	if shouldFail {
		f.failUpserts--
	}
	f.mu.Unlock()

	if shouldFail {
		return nil, errors.New("transient index failure")
	}
	return f.MemoryIndex.Upsert(ctx, tenant, records)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func stagePDFs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
	}
	return dir
}

func newTestPipeline(root string, extractor domain.TextExtractor, index domain.VectorIndex) *Pipeline {
	writer := ProvideBatchWriter(index, &fakeEmbedder{dims: 3}, 100, 2, "cosine")
	orchestrator := convert.ProvideOrchestrator(root, extractor, 2)
	splitCfg := NewSplitterConfig(1000, 200, 10, "\n\n")
	return ProvidePipeline(orchestrator, writer, splitCfg).WithRetryPolicy(fastRetry())
}

func TestProcessPartialFailure(t *testing.T) {
	root := t.TempDir()
	index := db.NewMemoryIndex()
	extractor := &stubExtractor{
		text:     strings.Repeat("employees accrue leave monthly ", 10),
		failures: map[string]bool{"bad.pdf": true},
	}
	p := newTestPipeline(root, extractor, index)

	tempDir := stagePDFs(t, "good.pdf", "bad.pdf")
	stats, err := p.Process(context.Background(), "acme", tempDir, map[string]string{"department": "hr"})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.PdfsProcessed)
	assert.Equal(t, 1, stats.PdfsFailed)
	assert.Equal(t, []string{"bad.pdf"}, stats.FailedFiles)
	assert.Greater(t, stats.DocumentsStored, 0)
	assert.Equal(t, stats.ChunksCreated, stats.DocumentsStored)

	hits, err := index.Query(context.Background(), "acme", []float32{1, 2, 3}, domain.QueryParams{K: 100})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, hit := range hits {
		assert.Equal(t, "acme", hit.Record.Metadata[domain.TenantIDKey])
		assert.Equal(t, "good.pdf", hit.Record.Metadata[domain.SourceKey])
		assert.Equal(t, "hr", hit.Record.Metadata["department"])
	}

	// Staged uploads and extracted texts are cleaned up after the run.
	_, statErr := os.Stat(filepath.Join(root, "uploads", "acme"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "texts", "acme"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessRetriesTransientFailure(t *testing.T) {
	root := t.TempDir()
	index := &flakyIndex{MemoryIndex: db.NewMemoryIndex(), failUpserts: 2}
	extractor := &stubExtractor{text: strings.Repeat("remote work policy applies ", 10)}
	p := newTestPipeline(root, extractor, index)

	tempDir := stagePDFs(t, "policy.pdf")
	stats, err := p.Process(context.Background(), "acme", tempDir, nil)

	require.NoError(t, err)
	assert.Greater(t, stats.DocumentsStored, 0)
	assert.Greater(t, index.Count("acme"), 0)
}

func TestProcessFailsWhenNothingConverts(t *testing.T) {
	root := t.TempDir()
	extractor := &stubExtractor{failures: map[string]bool{"bad.pdf": true}}
	p := newTestPipeline(root, extractor, db.NewMemoryIndex())

	tempDir := stagePDFs(t, "bad.pdf")
	_, err := p.Process(context.Background(), "acme", tempDir, nil)

	assert.ErrorIs(t, err, domain.ErrNoConversions)
}

func TestAddTextsForcesTenantMetadata(t *testing.T) {
	index := db.NewMemoryIndex()
	p := newTestPipeline(t.TempDir(), &stubExtractor{}, index)

	texts := []string{strings.Repeat("vacation policy details ", 10)}
	metas := []map[string]string{{domain.TenantIDKey: "intruder", "topic": "leave"}}

	stats, err := p.AddTexts(context.Background(), "acme", texts, metas)
	require.NoError(t, err)
	assert.Greater(t, stats.DocumentsStored, 0)

	hits, err := index.Query(context.Background(), "acme", []float32{1, 1, 1}, domain.QueryParams{K: 100})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, hit := range hits {
		assert.Equal(t, "acme", hit.Record.Metadata[domain.TenantIDKey])
		assert.Equal(t, "leave", hit.Record.Metadata["topic"])
	}
}

func TestAddTextsMetadataMismatch(t *testing.T) {
	p := newTestPipeline(t.TempDir(), &stubExtractor{}, db.NewMemoryIndex())

	_, err := p.AddTexts(context.Background(), "acme",
		[]string{"first text", "second text"},
		[]map[string]string{{"topic": "leave"}})

	assert.ErrorIs(t, err, domain.ErrMetadataMismatch)
}
