package ledger

import "time"

// Status captures the run lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one recorded run.
type Run struct {
	ID            int64
	RunID         string
	Goals         []string
	Status        Status
	ErrorMessage  string
	ArtifactCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
