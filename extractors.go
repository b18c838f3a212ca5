package sitedeco

import (
	"encoding/json"
	"errors"
	"fmt"
)

// statusCompleted is the run status the CI provider reports for a finished run,
// regardless of its conclusion.
const statusCompleted = "completed"

var (
	// ErrNoRuns is returned when the run list contains no runs.
	ErrNoRuns = errors.New("run list is empty")

	// ErrMissingStatus is returned when the latest run has no status field.
	ErrMissingStatus = errors.New("latest run has no status")

	// ErrNoJobs is returned when a run's job list contains no jobs.
	ErrNoJobs = errors.New("job list is empty")
)

// WorkflowRun is one execution of a CI workflow as reported by the provider.
type WorkflowRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	JobsURL    string `json:"jobs_url"`
	HTMLURL    string `json:"html_url"`
}

// Completed reports whether the run has finished.
func (r WorkflowRun) Completed() bool {
	return r.Status == statusCompleted
}

// Job is a sub-unit of a workflow run with its own live log page.
type Job struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	HTMLURL string `json:"html_url"`
}

type runList struct {
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

type jobList struct {
	Jobs []Job `json:"jobs"`
}

// ExtractLatestRun decodes a run-list response body and returns its first
// (most recent) run.
//
// Returns an error if the body is not valid JSON, the run list is empty
// ([ErrNoRuns]) or the latest run has no status ([ErrMissingStatus]).
func ExtractLatestRun(body []byte) (WorkflowRun, error) {
	var list runList
	if err := json.Unmarshal(body, &list); err != nil {
		return WorkflowRun{}, fmt.Errorf("failed to decode run list: %w", err)
	}
	if len(list.WorkflowRuns) == 0 {
		return WorkflowRun{}, ErrNoRuns
	}
	run := list.WorkflowRuns[0]
	if run.Status == "" {
		return WorkflowRun{}, ErrMissingStatus
	}
	return run, nil
}

// ExtractFirstJob decodes a job-list response body and returns its first job.
//
// Returns an error if the body is not valid JSON or the job list is empty
// ([ErrNoJobs]).
func ExtractFirstJob(body []byte) (Job, error) {
	var list jobList
	if err := json.Unmarshal(body, &list); err != nil {
		return Job{}, fmt.Errorf("failed to decode job list: %w", err)
	}
	if len(list.Jobs) == 0 {
		return Job{}, ErrNoJobs
	}
	return list.Jobs[0], nil
}
