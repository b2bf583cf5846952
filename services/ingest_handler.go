package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/docuquery/policy-search/domain"
	"github.com/docuquery/policy-search/jobs"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const TenantHeader = "X-Tenant-ID"

// Ingester runs the document pipeline. Satisfied by *pipeline.Pipeline.
type Ingester interface {
	Process(ctx context.Context, tenant, tempDir string, extraMeta map[string]string) (domain.ProcessingStats, error)
	AddTexts(ctx context.Context, tenant string, texts []string, metas []map[string]string) (domain.ProcessingStats, error)
	StagedFiles(tenant string) ([]string, error)
}

// IngestHandler accepts document uploads and raw texts for a tenant.
type IngestHandler struct {
	pipeline   Ingester
	store      jobs.Store
	uploadRoot string
}

func ProvideIngestHandler(pipeline Ingester, store jobs.Store, uploadRoot string) *IngestHandler {
	if uploadRoot == "" {
		uploadRoot = filepath.Join(os.TempDir(), "policy-search-uploads")
	}
	return &IngestHandler{pipeline: pipeline, store: store, uploadRoot: uploadRoot}
}

// Cleanup removes the upload staging root. Called on graceful shutdown;
// pending uploads are transient and re-submittable.
func (h *IngestHandler) Cleanup() {
	if err := os.RemoveAll(h.uploadRoot); err != nil {
		logger.Error("Failed to remove upload staging root",
			zap.String("root", h.uploadRoot), zap.Error(err))
	}
}

type uploadResponse struct {
	JobID   string        `json:"job_id"`
	Status  string        `json:"status"`
	Details uploadDetails `json:"details"`
}

type uploadDetails struct {
	FilesReceived int      `json:"files_received"`
	FileNames     []string `json:"file_names"`
}

// UploadDocuments receives multipart PDF uploads, stages them on disk and
// queues an ingestion job. A submission with no files re-processes whatever
// is already staged for the tenant; only when that is empty too does it 404.
// Returns 202 with the job id; progress is polled via the jobs endpoint.
func (h *IngestHandler) UploadDocuments(c echo.Context) error {
	tenant, err := requireTenant(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected multipart form upload")
	}
	files := form.File["files"]
	for _, file := range files {
		if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("unsupported file type: %s, only PDF is accepted", file.Filename))
		}
	}

	jobID := uuid.NewString()
	var tempDir string
	var fileNames []string

	if len(files) == 0 {
		staged, err := h.pipeline.StagedFiles(tenant)
		if err != nil {
			return fmt.Errorf("failed to list staged files: %w", err)
		}
		if len(staged) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, "no files uploaded and none staged for tenant "+tenant)
		}
		fileNames = staged
	} else {
		tempDir = filepath.Join(h.uploadRoot, jobID)
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return fmt.Errorf("failed to create upload dir: %w", err)
		}
		for _, file := range files {
			if err := saveUpload(file, tempDir); err != nil {
				os.RemoveAll(tempDir)
				return fmt.Errorf("failed to save upload %s: %w", file.Filename, err)
			}
			fileNames = append(fileNames, file.Filename)
		}
	}

	job := &jobs.Job{
		ID:            jobID,
		Tenant:        tenant,
		FilesReceived: len(fileNames),
		FileNames:     fileNames,
	}
	if err := h.store.Create(c.Request().Context(), job); err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("failed to create job: %w", err)
	}

	go h.runJob(jobID, tenant, tempDir)

	return c.JSON(http.StatusAccepted, uploadResponse{
		JobID:  jobID,
		Status: "processing",
		Details: uploadDetails{
			FilesReceived: len(fileNames),
			FileNames:     fileNames,
		},
	})
}

func (h *IngestHandler) runJob(jobID, tenant, tempDir string) {
	ctx := context.Background()
	if tempDir != "" {
		defer os.RemoveAll(tempDir)
	}

	if err := h.store.MarkRunning(ctx, jobID); err != nil {
		logger.Error("Failed to mark job running", zap.String("jobId", jobID), zap.Error(err))
		return
	}

	stats, err := h.pipeline.Process(ctx, tenant, tempDir, nil)
	if err != nil {
		logger.Error("Ingestion job failed",
			zap.String("jobId", jobID),
			zap.String("tenant", tenant),
			zap.Error(err))
		ingestJobsTotal.WithLabelValues("failed").Inc()
		if err := h.store.Fail(ctx, jobID, err); err != nil {
			logger.Error("Failed to record job failure", zap.String("jobId", jobID), zap.Error(err))
		}
		return
	}

	ingestJobsTotal.WithLabelValues("completed").Inc()
	chunksStoredTotal.Add(float64(stats.DocumentsStored))
	if err := h.store.Complete(ctx, jobID, &stats); err != nil {
		logger.Error("Failed to record job completion", zap.String("jobId", jobID), zap.Error(err))
	}
}

type addTextsRequest struct {
	Texts     []string            `json:"texts"`
	Metadatas []map[string]string `json:"metadatas,omitempty"`
}

type addTextsResponse struct {
	Status string                 `json:"status"`
	Stats  domain.ProcessingStats `json:"stats"`
}

// AddTexts ingests pre-extracted texts synchronously.
func (h *IngestHandler) AddTexts(c echo.Context) error {
	tenant, err := requireTenant(c)
	if err != nil {
		return err
	}

	var req addTextsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Texts) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no texts provided")
	}

	stats, err := h.pipeline.AddTexts(c.Request().Context(), tenant, req.Texts, req.Metadatas)
	if err != nil {
		if errors.Is(err, domain.ErrMetadataMismatch) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return fmt.Errorf("failed to ingest texts: %w", err)
	}

	chunksStoredTotal.Add(float64(stats.DocumentsStored))
	return c.JSON(http.StatusOK, addTextsResponse{Status: "completed", Stats: stats})
}

func requireTenant(c echo.Context) (string, error) {
	tenant := strings.TrimSpace(c.Request().Header.Get(TenantHeader))
	if tenant == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, TenantHeader+" header is required")
	}
	return tenant, nil
}

func saveUpload(file *multipart.FileHeader, dir string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(file.Filename)))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
