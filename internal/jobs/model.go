// Package jobs runs uploaded batch files out of band through the queue.
package jobs

import "time"

// Status is the lifecycle state of a batch job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one stored batch upload.
type Job struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storageKey"`
	FileName   string    `json:"fileName"`
	RowCount   int       `json:"rowCount"`
	Status     Status    `json:"status"`
	SessionID  string    `json:"sessionId,omitempty"`
	ExportID   string    `json:"exportId,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
