package jobs

import (
	"context"

	"github.com/docuquery/policy-search/domain"
)

// Store persists job status for async ingestion tracking.
type Store interface {
	Create(ctx context.Context, job *Job) error
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, stats *domain.ProcessingStats) error
	Fail(ctx context.Context, id string, cause error) error
	Get(ctx context.Context, id string) (*Job, error)
}
