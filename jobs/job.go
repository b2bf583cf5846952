package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/docuquery/policy-search/domain"
)

// State is the lifecycle stage of an ingestion job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var ErrNotFound = errors.New("job not found")

// Job tracks one asynchronous ingestion request. Terminal jobs carry either
// Stats (completed) or Error (failed), never both.
type Job struct {
	ID            string                  `json:"id"`
	Tenant        string                  `json:"tenant"`
	State         State                   `json:"state"`
	FilesReceived int                     `json:"files_received"`
	FileNames     []string                `json:"file_names"`
	Stats         *domain.ProcessingStats `json:"stats,omitempty"`
	Error         string                  `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// transition validates the state machine: Queued -> Running -> Completed
// or Failed. Terminal states accept nothing.
func (j *Job) transition(next State) error {
	valid := false
	switch j.State {
	case StateQueued:
		valid = next == StateRunning
	case StateRunning:
		valid = next == StateCompleted || next == StateFailed
	}
	if !valid {
		return fmt.Errorf("invalid job transition %s -> %s for job %s", j.State, next, j.ID)
	}
	j.State = next
	j.UpdatedAt = time.Now()
	return nil
}
