package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of one queued job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Job is one unit of work dequeued by a platform's worker loop and handed
// to the typed-node runtime.
type Job struct {
	JobID      uuid.UUID      `json:"job_id"`
	WorkflowID string         `json:"workflow_id"`
	Platform   Platform       `json:"platform"`
	Priority   int            `json:"priority"`
	Status     JobStatus      `json:"status"`
	Params     map[string]any `json:"params"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TTL returns how long a job payload in a given status may live in the
// queue store before the maintenance sweep reclaims it.
func (s JobStatus) TTL() time.Duration {
	switch s {
	case JobStatusPending:
		return time.Hour
	case JobStatusRunning:
		return 2 * time.Hour
	default:
		return 24 * time.Hour
	}
}
