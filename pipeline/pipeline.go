package pipeline

import (
	"context"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/docuquery/policy-search/convert"
	"github.com/docuquery/policy-search/domain"
	"go.uber.org/zap"
)

// RetryPolicy shapes the exponential backoff wrapping one Process call.
// Transient network failures against embedding and index services dominate
// the failure modes, so the whole run is retried MaxAttempts times.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 4 * time.Second, MaxInterval: 10 * time.Second}
}

// Pipeline coordinates conversion, splitting and batch writing for one
// tenant submission.
type Pipeline struct {
	orchestrator *convert.Orchestrator
	writer       *BatchWriter
	splitCfg     SplitterConfig
	retry        RetryPolicy
}

func ProvidePipeline(orchestrator *convert.Orchestrator, writer *BatchWriter, splitCfg SplitterConfig) *Pipeline {
	return &Pipeline{
		orchestrator: orchestrator,
		writer:       writer,
		splitCfg:     splitCfg,
		retry:        DefaultRetryPolicy(),
	}
}

// WithRetryPolicy overrides the retry wrapper; tests shrink the intervals.
func (p *Pipeline) WithRetryPolicy(policy RetryPolicy) *Pipeline {
	p.retry = policy
	return p
}

// Process runs the whole ingestion for one tenant: convert staged PDFs,
// split extracted texts, re-assert tenant scoping and write everything to
// the vector index. The run is retried with exponential backoff; staged
// input for the tenant is cleaned up unconditionally, success or failure.
func (p *Pipeline) Process(ctx context.Context, tenant, tempDir string, extraMeta map[string]string) (domain.ProcessingStats, error) {
	defer p.orchestrator.CleanupTenant(tenant)

	var stats domain.ProcessingStats
	operation := func() error {
		var err error
		stats, err = p.runOnce(ctx, tenant, tempDir, extraMeta)
		if err != nil {
			logger.Error("Ingestion attempt failed",
				zap.String("tenant", tenant), zap.Error(err))
		}
		return err
	}

	err := backoff.Retry(operation, p.newBackOff(ctx))
	if err != nil {
		return stats, fmt.Errorf("ingestion failed for tenant %s: %w", tenant, err)
	}
	return stats, nil
}

func (p *Pipeline) runOnce(ctx context.Context, tenant, tempDir string, extraMeta map[string]string) (domain.ProcessingStats, error) {
	stats := domain.ProcessingStats{Tenant: tenant}

	report, err := p.orchestrator.Convert(ctx, tenant, tempDir)
	if err != nil {
		return stats, err
	}
	stats.PdfsProcessed = len(report.Successful)
	stats.PdfsFailed = len(report.Failed)
	stats.FailedFiles = report.Failed

	if len(report.Successful) == 0 {
		return stats, fmt.Errorf("%w: tenant %s, %d files failed", domain.ErrNoConversions, tenant, len(report.Failed))
	}

	docs := make([]domain.Document, 0, len(report.Successful))
	for _, fileName := range report.Successful {
		textPath := p.orchestrator.TextPath(tenant, fileName)
		text, err := os.ReadFile(textPath)
		if err != nil {
			return stats, fmt.Errorf("failed to load extracted text for %s: %w", fileName, err)
		}

		meta := map[string]string{
			domain.TenantIDKey:     tenant,
			domain.SourceKey:       fileName,
			domain.TypeKey:         "pdf",
			domain.OriginalPathKey: textPath,
		}
		maps.Copy(meta, extraMeta)
		// Extras never displace tenant scoping.
		meta[domain.TenantIDKey] = tenant

		docs = append(docs, domain.Document{Text: string(text), Metadata: meta})
	}

	chunks, splitStats := SplitDocuments(p.splitCfg, docs)
	stats.Split = splitStats
	stats.ChunksCreated = len(chunks)

	// Defensive re-merge: tenant scoping must survive whatever upstream did.
	for i := range chunks {
		chunks[i].Metadata[domain.TenantIDKey] = tenant
	}

	ids, err := p.writer.WriteBatches(ctx, tenant, chunks)
	if err != nil {
		return stats, err
	}
	stats.DocumentsStored = len(ids)

	logger.Info("Ingestion run complete",
		zap.String("tenant", tenant),
		zap.Int("pdfsProcessed", stats.PdfsProcessed),
		zap.Int("pdfsFailed", stats.PdfsFailed),
		zap.Int("chunksStored", stats.DocumentsStored))
	return stats, nil
}

// StagedFiles lists the PDFs already staged for the tenant from an earlier
// upload, so a submission with no new files can process them.
func (p *Pipeline) StagedFiles(tenant string) ([]string, error) {
	return p.orchestrator.StagedFiles(tenant)
}

// AddTexts ingests raw texts for a tenant, skipping the conversion stage.
// Each text gets tenant_id metadata regardless of what the caller supplied.
func (p *Pipeline) AddTexts(ctx context.Context, tenant string, texts []string, metas []map[string]string) (domain.ProcessingStats, error) {
	stats := domain.ProcessingStats{Tenant: tenant}

	if metas != nil && len(metas) != len(texts) {
		return stats, fmt.Errorf("got %d metadata entries for %d texts: %w", len(metas), len(texts), domain.ErrMetadataMismatch)
	}

	docs := make([]domain.Document, 0, len(texts))
	for i, text := range texts {
		meta := map[string]string{}
		if metas != nil {
			maps.Copy(meta, metas[i])
		}
		meta[domain.TenantIDKey] = tenant
		docs = append(docs, domain.Document{Text: text, Metadata: meta})
	}

	chunks, splitStats := SplitDocuments(p.splitCfg, docs)
	stats.Split = splitStats
	stats.ChunksCreated = len(chunks)

	for i := range chunks {
		chunks[i].Metadata[domain.TenantIDKey] = tenant
	}

	ids, err := p.writer.WriteBatches(ctx, tenant, chunks)
	if err != nil {
		return stats, fmt.Errorf("failed to store texts for tenant %s: %w", tenant, err)
	}
	stats.DocumentsStored = len(ids)
	return stats, nil
}

func (p *Pipeline) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retry.InitialInterval
	b.MaxInterval = p.retry.MaxInterval
	b.MaxElapsedTime = 0

	attempts := uint64(p.retry.MaxAttempts)
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx)
}
