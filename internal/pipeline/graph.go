package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// Job is one schedulable unit of a pipeline run.
type Job struct {
	// Name identifies the job in the graph and in the run report.
	Name string

	// Needs lists the jobs that must complete successfully before this one
	// starts. A dependency that fails, is skipped, or is cancelled marks
	// this job SKIPPED.
	Needs []string

	// When gates the job after its dependencies succeeded. A nil gate
	// always passes; a false gate marks the job SKIPPED.
	When func() bool

	// Run does the work and reports per-step results. A nil Run succeeds
	// immediately.
	Run func(ctx context.Context) ([]StepResult, error)
}

// Graph is a validated job dependency graph.
type Graph struct {
	jobs  []Job
	order []string
}

// NewGraph validates the job set: names must be unique and non-empty,
// every dependency must name a job in the set, and the dependency
// relation must be acyclic.
func NewGraph(jobs ...Job) (*Graph, error) {
	index := make(map[string]int, len(jobs))
	for i, job := range jobs {
		if job.Name == "" {
			return nil, errors.New(errors.CodeInvalidConfig, "job name cannot be empty")
		}
		if _, exists := index[job.Name]; exists {
			return nil, errors.Newf(errors.CodeInvalidConfig, "duplicate job %q", job.Name)
		}
		index[job.Name] = i
	}

	for _, job := range jobs {
		for _, need := range job.Needs {
			if need == job.Name {
				return nil, errors.Newf(errors.CodeInvalidConfig,
					"job %q depends on itself", job.Name)
			}
			if _, exists := index[need]; !exists {
				return nil, errors.Newf(errors.CodeInvalidConfig,
					"job %q depends on unknown job %q", job.Name, need)
			}
		}
	}

	order, err := topoOrder(jobs)
	if err != nil {
		return nil, err
	}

	return &Graph{jobs: jobs, order: order}, nil
}

// topoOrder computes a dependency-compatible ordering, keeping the
// declaration order among jobs that are ready at the same time.
func topoOrder(jobs []Job) ([]string, error) {
	placed := make(map[string]bool, len(jobs))
	order := make([]string, 0, len(jobs))

	for len(order) < len(jobs) {
		progressed := false
		for _, job := range jobs {
			if placed[job.Name] {
				continue
			}
			ready := true
			for _, need := range job.Needs {
				if !placed[need] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			placed[job.Name] = true
			order = append(order, job.Name)
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, job := range jobs {
				if !placed[job.Name] {
					stuck = append(stuck, job.Name)
				}
			}
			sort.Strings(stuck)
			return nil, errors.Newf(errors.CodeInvalidConfig,
				"dependency cycle among jobs: %s", strings.Join(stuck, ", "))
		}
	}

	return order, nil
}

// Order returns the job names in a stable dependency-compatible order.
func (g *Graph) Order() []string {
	order := make([]string, len(g.order))
	copy(order, g.order)
	return order
}

// jobState tracks one job through an Execute call.
type jobState struct {
	job  Job
	res  JobResult
	done chan struct{}
}

// Execute runs the graph. Independent jobs run concurrently; the first
// failure cancels the run context; dependents of a job that did not
// succeed are skipped rather than failed. The returned results follow
// the declaration order of the jobs, and the returned error is the
// first job failure, or the cancellation cause when no job failed.
func (g *Graph) Execute(ctx context.Context, logger *slog.Logger) ([]JobResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	states := make(map[string]*jobState, len(g.jobs))
	for _, job := range g.jobs {
		states[job.Name] = &jobState{
			job:  job,
			res:  JobResult{Name: job.Name, Status: StatusPending},
			done: make(chan struct{}),
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	for _, job := range g.jobs {
		st := states[job.Name]
		eg.Go(func() error {
			defer close(st.done)
			return runJob(egctx, st, states, logger)
		})
	}
	err := eg.Wait()

	results := make([]JobResult, 0, len(g.jobs))
	for _, job := range g.jobs {
		results = append(results, states[job.Name].res)
	}
	return results, err
}

// runJob waits for the job's dependencies, evaluates its gate, and runs
// it, recording the outcome on its state before the done channel closes.
func runJob(ctx context.Context, st *jobState, states map[string]*jobState, logger *slog.Logger) error {
	for _, need := range st.job.Needs {
		dep := states[need]
		select {
		case <-dep.done:
		case <-ctx.Done():
			// The dependency may have finished at the same moment the run
			// was cancelled; its recorded outcome wins over the cancellation.
			select {
			case <-dep.done:
			default:
				st.res.Status = StatusCancelled
				return ctx.Err()
			}
		}
		if dep.res.Status != StatusSuccess {
			logger.InfoContext(ctx, "job skipped",
				"job", st.job.Name, "blocked_by", need, "dependency_status", dep.res.Status.String())
			st.res.Status = StatusSkipped
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		st.res.Status = StatusCancelled
		return err
	}

	if st.job.When != nil && !st.job.When() {
		logger.InfoContext(ctx, "job skipped", "job", st.job.Name, "blocked_by", "gate")
		st.res.Status = StatusSkipped
		return nil
	}

	started := time.Now().UTC()
	st.res.Status = StatusRunning
	st.res.StartedAt = &started
	logger.InfoContext(ctx, "job started", "job", st.job.Name)

	var steps []StepResult
	var err error
	if st.job.Run != nil {
		steps, err = st.job.Run(ctx)
	}

	completed := time.Now().UTC()
	st.res.CompletedAt = &completed
	st.res.Steps = steps

	if err != nil {
		if ctx.Err() != nil {
			st.res.Status = StatusCancelled
		} else {
			st.res.Status = StatusFailed
		}
		st.res.Error = err.Error()
		logger.ErrorContext(ctx, "job failed",
			"job", st.job.Name, "status", st.res.Status.String(), "error", err)
		return err
	}

	st.res.Status = StatusSuccess
	logger.InfoContext(ctx, "job finished",
		"job", st.job.Name, "duration", completed.Sub(started).String())
	return nil
}
