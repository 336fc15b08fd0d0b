package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a reconciliation run.
type RunStatus string

const (
	RunPending          RunStatus = "pending"
	RunRunning          RunStatus = "running"
	RunValidationFailed RunStatus = "validation_failed"
	RunFailed           RunStatus = "failed"
	RunCancelled        RunStatus = "cancelled"
	RunCompleted        RunStatus = "completed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunValidationFailed, RunFailed, RunCancelled, RunCompleted:
		return true
	default:
		return false
	}
}

// StageProgress records one executed pipeline stage of a run.
type StageProgress struct {
	Name       string     `json:"name"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Run is one reconciliation run tracked by the engine. Stage names the
// stage currently executing and empties once the run is terminal; Stages
// keeps the full trace. The report is kept off the serialized form and
// served by its own endpoint; run listings stay small even when reports
// carry sampled rows.
type Run struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name,omitempty"`
	Status      RunStatus         `json:"status"`
	Stage       string            `json:"stage,omitempty"`
	Definition  RunDefinition     `json:"definition"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	Stages      []StageProgress   `json:"stages,omitempty"`
	ExportPaths []string          `json:"export_paths,omitempty"`
	Report      *Report           `json:"-"`
}
