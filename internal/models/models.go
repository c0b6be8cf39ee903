// package models defines the job and DTO types for the yomi client
package models

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the canonical job status vocabulary.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
)

// ParseJobStatus normalises a status string from either status endpoint.
//
// The job endpoint reports queued, started, deferred, finished and failed; the task endpoint reports PENDING,
// STARTED, PROGRESS, SUCCESS and FAILURE. Unknown values map to processing since the job has not terminated.
func ParseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "finished", "success", "complete", "completed":
		return JobSucceeded
	case "failed", "failure", "error", "stopped", "canceled", "cancelled":
		return JobFailed
	case "queued", "pending", "deferred", "scheduled", "":
		return JobQueued
	default:
		return JobProcessing
	}
}

// IsTerminal reports whether no further transition can happen from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

func (s JobStatus) String() string { return string(s) }

// JobKind identifies which workflow submitted a job.
type JobKind string

const (
	KindUpload   JobKind = "upload"
	KindSnapshot JobKind = "snapshot"
	KindLifetime JobKind = "lifetime"
)

// JobResult is the untyped result payload of a finished job.
type JobResult map[string]any

// Int reads a numeric field. JSON numbers decode as float64, so both are accepted.
func (r JobResult) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// Text reads a string field, returning "" when absent.
func (r JobResult) Text(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Job is the client's view of one remote job.
type Job struct {
	ID           string    `json:"id"`
	Kind         JobKind   `json:"kind,omitempty"`
	Label        string    `json:"label,omitempty"` // slot name, e.g. the snapshot period
	Status       JobStatus `json:"status"`
	Progress     *int      `json:"progress,omitempty"`
	Result       JobResult `json:"result,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJob creates a queued job for a freshly accepted submission.
func NewJob(id string, kind JobKind, label string) *Job {
	now := time.Now()
	return &Job{ID: id, Kind: kind, Label: label, Status: JobQueued, CreatedAt: now, UpdatedAt: now}
}

// Validate checks the fields persistence depends on.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	switch j.Status {
	case JobQueued, JobProcessing, JobSucceeded, JobFailed:
	default:
		return fmt.Errorf("invalid job status %q", j.Status)
	}
	if j.Progress != nil && (*j.Progress < 0 || *j.Progress > 100) {
		return fmt.Errorf("progress %d out of range", *j.Progress)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with j.
func (j Job) Clone() Job {
	if j.Progress != nil {
		p := *j.Progress
		j.Progress = &p
	}
	if j.Result != nil {
		r := make(JobResult, len(j.Result))
		for k, v := range j.Result {
			r[k] = v
		}
		j.Result = r
	}
	return j
}

// UploadSummary is the result of a finished upload job.
type UploadSummary struct {
	Status   string `json:"status"`
	Inserted int    `json:"inserted"`
	Total    int    `json:"total"`
	Message  string `json:"message,omitempty"`
}

// UploadSummaryFrom reads an upload summary out of a job result.
func UploadSummaryFrom(r JobResult) UploadSummary {
	s := UploadSummary{Status: r.Text("status"), Message: r.Text("message")}
	s.Inserted, _ = r.Int("inserted")
	s.Total, _ = r.Int("total")
	return s
}
