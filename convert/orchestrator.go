package convert

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/docuquery/policy-search/domain"
	"go.uber.org/zap"
)

// Orchestrator drives PDF-to-text conversion for one tenant's staged files.
// Uploads live under <root>/uploads/<tenant>, extracted text under
// <root>/texts/<tenant>/<base>.txt. Extraction is CPU-bound, so files run
// on a worker pool of fixed size instead of unbounded goroutines.
type Orchestrator struct {
	root      string
	extractor domain.TextExtractor
	workers   int
}

func ProvideOrchestrator(root string, extractor domain.TextExtractor, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{root: root, extractor: extractor, workers: workers}
}

func (o *Orchestrator) uploadsDir(tenant string) string {
	return filepath.Join(o.root, "uploads", tenant)
}

func (o *Orchestrator) textsDir(tenant string) string {
	return filepath.Join(o.root, "texts", tenant)
}

// TextPath returns where the extracted text of fileName is persisted for
// the tenant, keyed by the file's base name.
func (o *Orchestrator) TextPath(tenant, fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return filepath.Join(o.textsDir(tenant), base+".txt")
}

// StagedFiles lists the PDFs already sitting in the tenant's upload
// directory, by base name, sorted.
func (o *Orchestrator) StagedFiles(tenant string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(o.uploadsDir(tenant), "*.pdf"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, filepath.Base(match))
	}
	sort.Strings(names)
	return names, nil
}

// Convert stages any files from tempDir into the tenant's upload directory,
// then extracts every staged PDF. A per-file extraction failure is recorded
// and logged but never aborts the remaining files. An empty tenant yields an
// empty report without error.
func (o *Orchestrator) Convert(ctx context.Context, tenant, tempDir string) (domain.ConversionReport, error) {
	report := domain.ConversionReport{}

	if err := os.MkdirAll(o.uploadsDir(tenant), 0o755); err != nil {
		return report, err
	}
	if err := os.MkdirAll(o.textsDir(tenant), 0o755); err != nil {
		return report, err
	}

	if tempDir != "" {
		if err := o.stageUploads(tenant, tempDir); err != nil {
			return report, err
		}
	}

	pdfFiles, err := filepath.Glob(filepath.Join(o.uploadsDir(tenant), "*.pdf"))
	if err != nil {
		return report, err
	}
	sort.Strings(pdfFiles)
	report.Total = len(pdfFiles)
	if report.Total == 0 {
		logger.Info("No PDF files staged for tenant", zap.String("tenant", tenant))
		return report, nil
	}

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, pdfPath := range pdfFiles {
		wg.Add(1)
		go func(pdfPath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			name := filepath.Base(pdfPath)
			if err := o.convertOne(ctx, tenant, pdfPath); err != nil {
				logger.Error("Conversion failed",
					zap.String("tenant", tenant),
					zap.String("file", name),
					zap.Error(err))
				mu.Lock()
				report.Failed = append(report.Failed, name)
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Successful = append(report.Successful, name)
			mu.Unlock()
		}(pdfPath)
	}
	wg.Wait()

	sort.Strings(report.Successful)
	sort.Strings(report.Failed)

	logger.Info("Conversion run finished",
		zap.String("tenant", tenant),
		zap.Int("successful", len(report.Successful)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (o *Orchestrator) convertOne(ctx context.Context, tenant, pdfPath string) error {
	text, err := o.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return err
	}
	return os.WriteFile(o.TextPath(tenant, pdfPath), []byte(text), 0o644)
}

// stageUploads moves *.pdf from tempDir into the tenant's upload directory,
// overwriting files of the same name.
func (o *Orchestrator) stageUploads(tenant, tempDir string) error {
	matches, err := filepath.Glob(filepath.Join(tempDir, "*.pdf"))
	if err != nil {
		return err
	}
	for _, src := range matches {
		dst := filepath.Join(o.uploadsDir(tenant), filepath.Base(src))
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			// Rename fails across filesystems; fall back to copy.
			if err := copyFile(src, dst); err != nil {
				return err
			}
			_ = os.Remove(src)
		}
	}
	return nil
}

// CleanupTenant deletes the tenant's staged uploads and extracted texts.
// The pipeline calls this unconditionally after a run, success or failure.
func (o *Orchestrator) CleanupTenant(tenant string) {
	if err := os.RemoveAll(o.uploadsDir(tenant)); err != nil {
		logger.Error("Failed to clean up uploads", zap.String("tenant", tenant), zap.Error(err))
	}
	if err := os.RemoveAll(o.textsDir(tenant)); err != nil {
		logger.Error("Failed to clean up texts", zap.String("tenant", tenant), zap.Error(err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
