package pipeline

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/opendatateam/hydra-release/internal/artifact"
	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
	"github.com/opendatateam/hydra-release/internal/release"
)

// File names within a run directory.
const (
	// ReportFile is the JSON run record.
	ReportFile = "report.json"

	// NotesFile is the generated release notes document.
	NotesFile = "notes.md"
)

// DefaultRunsDir returns the default location of run directories under
// the user cache directory.
func DefaultRunsDir() string {
	return filepath.Join(xdg.CacheHome, "hydra-release", "runs")
}

// StepResult records the outcome of a single step execution.
type StepResult struct {
	// Name is the configured step name. May be empty.
	Name string `json:"name,omitempty"`

	// Command is the step script as configured.
	Command string `json:"command"`

	// Status is the final step status.
	Status Status `json:"status"`

	// ExitCode is the process exit code. Nil when the step never ran.
	ExitCode *int `json:"exit_code,omitempty"`

	// StartedAt is when the step began. Nil if it never started.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the step finished. Nil if it never finished.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is the failure message for failed steps.
	Error string `json:"error,omitempty"`
}

// JobResult records the outcome of one job within a run.
type JobResult struct {
	// Name is the job name.
	Name string `json:"name"`

	// Status is the final job status.
	Status Status `json:"status"`

	// StartedAt is when the job began. Nil if it never started.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished. Nil if it never finished.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Steps are the per-step results, in execution order.
	Steps []StepResult `json:"steps,omitempty"`

	// Error is the failure message for failed jobs.
	Error string `json:"error,omitempty"`
}

// RunRecord is the complete record of one pipeline run.
type RunRecord struct {
	// ID is the unique identifier of the run (UUID).
	ID string `json:"id"`

	// App is the application the pipeline ran for.
	App string `json:"app"`

	// Environment is the target deploy environment.
	Environment string `json:"environment"`

	// Version is the resolved release version.
	Version string `json:"version"`

	// Context is the build context the run resolved from.
	Context release.BuildContext `json:"build_context"`

	// Decision is the evaluated promotion decision.
	Decision release.Decision `json:"decision"`

	// Status is the overall run status.
	Status Status `json:"status"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished. Nil while still running.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Jobs are the per-job results in graph declaration order.
	Jobs []JobResult `json:"jobs"`

	// Artifacts are the build outputs uploaded to the artifact store.
	Artifacts []artifact.Artifact `json:"artifacts,omitempty"`
}

// Job returns the result of the named job, or nil when the run has none.
func (r *RunRecord) Job(name string) *JobResult {
	for i := range r.Jobs {
		if r.Jobs[i].Name == name {
			return &r.Jobs[i]
		}
	}
	return nil
}

// overallStatus derives the run status from its job results. A failure
// outweighs a cancellation; skipped jobs do not degrade the run.
func overallStatus(jobs []JobResult) Status {
	status := StatusSuccess
	for _, job := range jobs {
		switch job.Status {
		case StatusFailed:
			return StatusFailed
		case StatusCancelled:
			status = StatusCancelled
		}
	}
	return status
}

// WriteReport writes the run record as indented JSON under
// dir/<run-id>/report.json and returns the report path.
func WriteReport(filesystem fsys.Filesystem, dir string, rec *RunRecord) (string, error) {
	runDir := filepath.Join(dir, rec.ID)
	if err := filesystem.MkdirAll(runDir, 0o755); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to create run directory", map[string]interface{}{"dir": runDir})
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to encode run report")
	}

	path := filepath.Join(runDir, ReportFile)
	if err := filesystem.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to write run report", map[string]interface{}{"path": path})
	}

	return path, nil
}

// ReadReport loads a run record back from a report file.
func ReadReport(filesystem fsys.Filesystem, path string) (*RunRecord, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to read run report", map[string]interface{}{"path": path})
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInternal,
			"failed to decode run report", map[string]interface{}{"path": path})
	}

	return &rec, nil
}
