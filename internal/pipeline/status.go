package pipeline

// Status represents the execution status of a run, a job, or a step.
type Status string

const (
	// StatusPending indicates execution has not started yet.
	StatusPending Status = "PENDING"

	// StatusRunning indicates execution is in progress.
	StatusRunning Status = "RUNNING"

	// StatusSuccess indicates execution completed successfully.
	StatusSuccess Status = "SUCCESS"

	// StatusFailed indicates execution completed with an error.
	StatusFailed Status = "FAILED"

	// StatusCancelled indicates execution was interrupted by cancellation,
	// usually because another job failed first.
	StatusCancelled Status = "CANCELLED"

	// StatusSkipped indicates the work was never attempted, either because
	// a gate declined it or because a dependency did not succeed.
	StatusSkipped Status = "SKIPPED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
