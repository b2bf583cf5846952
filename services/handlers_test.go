package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docuquery/policy-search/domain"
	"github.com/docuquery/policy-search/jobs"
	"github.com/docuquery/policy-search/search"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIngester records calls and returns canned stats.
type stubIngester struct {
	stats      domain.ProcessingStats
	processErr error
	textsErr   error
	staged     []string
	gotTenant  string
	gotTempDir string
}

func (s *stubIngester) Process(_ context.Context, tenant, tempDir string, _ map[string]string) (domain.ProcessingStats, error) {
	s.gotTenant = tenant
	s.gotTempDir = tempDir
	return s.stats, s.processErr
}

func (s *stubIngester) StagedFiles(string) ([]string, error) {
	return s.staged, nil
}

func (s *stubIngester) AddTexts(_ context.Context, tenant string, _ []string, _ []map[string]string) (domain.ProcessingStats, error) {
	s.gotTenant = tenant
	return s.stats, s.textsErr
}

// stubSearcher returns a canned answer.
type stubSearcher struct {
	answer    domain.Answer
	results   []domain.SearchResult
	err       error
	gotTenant string
	gotQuery  string
	gotOpts   search.Options
}

func (s *stubSearcher) Answer(_ context.Context, tenant, query string, opts search.Options) (domain.Answer, []domain.SearchResult, error) {
	s.gotTenant = tenant
	s.gotQuery = query
	s.gotOpts = opts
	return s.answer, s.results, s.err
}

func newContext(t *testing.T, method, path string, body *bytes.Buffer, contentType, tenant string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func multipartPDFs(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, name := range names {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, code, he.Code)
}

func TestUploadDocumentsRequiresTenant(t *testing.T) {
	h := ProvideIngestHandler(&stubIngester{}, jobs.ProvideMemoryStore(), t.TempDir())
	body, contentType := multipartPDFs(t, "doc.pdf")
	c, _ := newContext(t, http.MethodPost, "/v1/documents", body, contentType, "")

	assertHTTPError(t, h.UploadDocuments(c), http.StatusBadRequest)
}

func TestUploadDocumentsRejectsNonPDF(t *testing.T) {
	h := ProvideIngestHandler(&stubIngester{}, jobs.ProvideMemoryStore(), t.TempDir())
	body, contentType := multipartPDFs(t, "doc.docx")
	c, _ := newContext(t, http.MethodPost, "/v1/documents", body, contentType, "acme")

	assertHTTPError(t, h.UploadDocuments(c), http.StatusBadRequest)
}

func TestUploadDocumentsEmptyFormProcessesStaged(t *testing.T) {
	store := jobs.ProvideMemoryStore()
	ingester := &stubIngester{
		staged: []string{"earlier.pdf"},
		stats:  domain.ProcessingStats{Tenant: "acme", PdfsProcessed: 1, DocumentsStored: 4},
	}
	h := ProvideIngestHandler(ingester, store, t.TempDir())

	body, contentType := multipartPDFs(t)
	c, rec := newContext(t, http.MethodPost, "/v1/documents", body, contentType, "acme")

	require.NoError(t, h.UploadDocuments(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Details.FilesReceived)
	assert.Equal(t, []string{"earlier.pdf"}, resp.Details.FileNames)

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), resp.JobID)
		return err == nil && job.State == jobs.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	// No new uploads, so the pipeline runs against the staged directory
	// rather than a fresh temp dir.
	assert.Equal(t, "", ingester.gotTempDir)
}

func TestUploadDocumentsEmptyFormNothingStaged(t *testing.T) {
	h := ProvideIngestHandler(&stubIngester{}, jobs.ProvideMemoryStore(), t.TempDir())
	body, contentType := multipartPDFs(t)
	c, _ := newContext(t, http.MethodPost, "/v1/documents", body, contentType, "acme")

	assertHTTPError(t, h.UploadDocuments(c), http.StatusNotFound)
}

func TestUploadDocumentsQueuesJob(t *testing.T) {
	store := jobs.ProvideMemoryStore()
	ingester := &stubIngester{stats: domain.ProcessingStats{Tenant: "acme", PdfsProcessed: 2, DocumentsStored: 9}}
	h := ProvideIngestHandler(ingester, store, t.TempDir())

	body, contentType := multipartPDFs(t, "a.pdf", "b.pdf")
	c, rec := newContext(t, http.MethodPost, "/v1/documents", body, contentType, "acme")

	require.NoError(t, h.UploadDocuments(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, 2, resp.Details.FilesReceived)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, resp.Details.FileNames)

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), resp.JobID)
		return err == nil && job.State == jobs.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	job, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, job.Stats)
	assert.Equal(t, 9, job.Stats.DocumentsStored)
	assert.Equal(t, "acme", ingester.gotTenant)
}

func TestUploadDocumentsRecordsFailure(t *testing.T) {
	store := jobs.ProvideMemoryStore()
	ingester := &stubIngester{processErr: errors.New("everything failed")}
	h := ProvideIngestHandler(ingester, store, t.TempDir())

	body, contentType := multipartPDFs(t, "a.pdf")
	c, rec := newContext(t, http.MethodPost, "/v1/documents", body, contentType, "acme")

	require.NoError(t, h.UploadDocuments(c))

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), resp.JobID)
		return err == nil && job.State == jobs.StateFailed
	}, 2*time.Second, 10*time.Millisecond)

	job, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Contains(t, job.Error, "everything failed")
}

func TestAddTextsSuccess(t *testing.T) {
	ingester := &stubIngester{stats: domain.ProcessingStats{Tenant: "acme", ChunksCreated: 3, DocumentsStored: 3}}
	h := ProvideIngestHandler(ingester, jobs.ProvideMemoryStore(), t.TempDir())

	payload := `{"texts": ["policy text one", "policy text two"]}`
	c, rec := newContext(t, http.MethodPost, "/v1/texts",
		bytes.NewBufferString(payload), echo.MIMEApplicationJSON, "acme")

	require.NoError(t, h.AddTexts(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp addTextsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 3, resp.Stats.DocumentsStored)
}

func TestAddTextsMetadataMismatch(t *testing.T) {
	ingester := &stubIngester{textsErr: fmt.Errorf("got 1 for 2: %w", domain.ErrMetadataMismatch)}
	h := ProvideIngestHandler(ingester, jobs.ProvideMemoryStore(), t.TempDir())

	payload := `{"texts": ["one", "two"], "metadatas": [{"topic": "leave"}]}`
	c, _ := newContext(t, http.MethodPost, "/v1/texts",
		bytes.NewBufferString(payload), echo.MIMEApplicationJSON, "acme")

	assertHTTPError(t, h.AddTexts(c), http.StatusBadRequest)
}

func TestAddTextsRequiresBody(t *testing.T) {
	h := ProvideIngestHandler(&stubIngester{}, jobs.ProvideMemoryStore(), t.TempDir())

	c, _ := newContext(t, http.MethodPost, "/v1/texts",
		bytes.NewBufferString(`{"texts": []}`), echo.MIMEApplicationJSON, "acme")

	assertHTTPError(t, h.AddTexts(c), http.StatusBadRequest)
}

func TestGetJob(t *testing.T) {
	store := jobs.ProvideMemoryStore()
	require.NoError(t, store.Create(context.Background(), &jobs.Job{ID: "job-1", Tenant: "acme"}))
	h := ProvideJobHandler(store)

	c, rec := newContext(t, http.MethodGet, "/v1/jobs/job-1", nil, "", "")
	c.SetParamNames("id")
	c.SetParamValues("job-1")

	require.NoError(t, h.GetJob(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, jobs.StateQueued, job.State)
}

func TestGetJobNotFound(t *testing.T) {
	h := ProvideJobHandler(jobs.ProvideMemoryStore())

	c, _ := newContext(t, http.MethodGet, "/v1/jobs/missing", nil, "", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	assertHTTPError(t, h.GetJob(c), http.StatusNotFound)
}

func TestSearchHandlerSuccess(t *testing.T) {
	searcher := &stubSearcher{
		answer: domain.Answer{Text: "Leave accrues monthly.", Sources: []string{"leave.pdf"}, NumDocuments: 1},
		results: []domain.SearchResult{{
			Content:  "annual leave accrues monthly",
			Metadata: map[string]string{domain.TenantIDKey: "acme", domain.SourceKey: "leave.pdf"},
			Score:    0.97,
		}},
	}
	h := ProvideSearchHandler(searcher)

	payload := `{"query": "how does leave work?", "k": 5, "search_type": "mmr", "metadata_filter": {"topic": "leave"}}`
	c, rec := newContext(t, http.MethodPost, "/v1/search",
		bytes.NewBufferString(payload), echo.MIMEApplicationJSON, "acme")

	require.NoError(t, h.Search(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "acme", searcher.gotTenant)
	assert.Equal(t, "how does leave work?", searcher.gotQuery)
	assert.Equal(t, 5, searcher.gotOpts.K)
	assert.Equal(t, domain.SearchMMR, searcher.gotOpts.Mode)
	assert.Equal(t, "leave", searcher.gotOpts.Filters["topic"])

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "how does leave work?", resp.Query)
	assert.Equal(t, "Leave accrues monthly.", resp.AIResponse.Answer)
	assert.Equal(t, 1, resp.AIResponse.Metadata.NumDocuments)
	assert.Equal(t, []string{"leave.pdf"}, resp.AIResponse.Metadata.Sources)
	require.Len(t, resp.RelevantDocuments, 1)
	assert.Equal(t, "annual leave accrues monthly", resp.RelevantDocuments[0].Content)
	assert.InDelta(t, 0.97, resp.RelevantDocuments[0].SimilarityScore, 1e-9)
}

func TestSearchHandlerValidation(t *testing.T) {
	h := ProvideSearchHandler(&stubSearcher{})

	c, _ := newContext(t, http.MethodPost, "/v1/search",
		bytes.NewBufferString(`{"query": "q"}`), echo.MIMEApplicationJSON, "")
	assertHTTPError(t, h.Search(c), http.StatusBadRequest)

	c, _ = newContext(t, http.MethodPost, "/v1/search",
		bytes.NewBufferString(`{"query": "  "}`), echo.MIMEApplicationJSON, "acme")
	assertHTTPError(t, h.Search(c), http.StatusBadRequest)

	c, _ = newContext(t, http.MethodPost, "/v1/search",
		bytes.NewBufferString(`{"query": "q", "search_type": "bogus"}`), echo.MIMEApplicationJSON, "acme")
	assertHTTPError(t, h.Search(c), http.StatusBadRequest)
}

func TestServerRoutes(t *testing.T) {
	server := ProvideServer(
		ProvideIngestHandler(&stubIngester{}, jobs.ProvideMemoryStore(), t.TempDir()),
		ProvideJobHandler(jobs.ProvideMemoryStore()),
		ProvideSearchHandler(&stubSearcher{}),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	// Missing tenant header surfaces as structured JSON, not a panic.
	req = httptest.NewRequest(http.MethodPost, "/v1/search",
		strings.NewReader(`{"query": "q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestServerShutdownRemovesUploadRoot(t *testing.T) {
	uploadRoot := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, os.MkdirAll(uploadRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploadRoot, "pending.pdf"), []byte("%PDF-1.4"), 0o644))

	server := ProvideServer(
		ProvideIngestHandler(&stubIngester{}, jobs.ProvideMemoryStore(), uploadRoot),
		ProvideJobHandler(jobs.ProvideMemoryStore()),
		ProvideSearchHandler(&stubSearcher{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx, ":0") }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, statErr := os.Stat(uploadRoot)
	assert.True(t, os.IsNotExist(statErr))
}
