package storage

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one ingestion run as recorded in the ledger.
type Run struct {
	ID           string     `json:"id"` // UUID
	Dir          string     `json:"dir"`
	Reset        bool       `json:"reset"` // collection was cleared before committing
	Status       RunStatus  `json:"status"`
	Documents    int        `json:"documents"`
	Chunks       int        `json:"chunks"`    // chunks produced by the splitter
	Committed    int        `json:"committed"` // chunks durably written to the index
	Error        string     `json:"error,omitempty"`
	IndexVersion string     `json:"index_version"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"` // nil while running
}

// Batch is one committed upsert batch of a run.
type Batch struct {
	RunID       string    `json:"run_id"`
	Index       int       `json:"index"` // 0-based position in the run
	Size        int       `json:"size"`
	CommittedAt time.Time `json:"committed_at"`
}
