package tasks

import (
	"fmt"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/poller"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, a [models.Job] while polling
}

// Operation phase enumeration
type Phase int

const (
	ValidateFile Phase = iota
	UploadFile
	SubmitJob
	PollJob
	FetchSnapshot
)

func (p Phase) String() string {
	switch p {
	case ValidateFile:
		return "validate_file"
	case UploadFile:
		return "upload_file"
	case SubmitJob:
		return "submit_job"
	case PollJob:
		return "poll_job"
	case FetchSnapshot:
		return "fetch_snapshot"
	default:
		return ""
	}
}

func validateFileUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateFile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking %s...", path),
	}
}

func uploadBytesUpdate(sent, total int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFile,
		Step:    int(sent),
		Total:   int(total),
		Message: "Uploading streaming history...",
	}
}

func submitSnapshotsUpdate(periods []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SubmitJob,
		Step:    0,
		Total:   len(periods),
		Message: fmt.Sprintf("Requesting %d snapshot(s)...", len(periods)),
	}
}

func snapshotDoneUpdate(step, total int, o SnapshotOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s snapshot ready", step, total, o.Period)
	if o.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s snapshot: %v", step, total, o.Period, o.Err)
	}
	return ProgressUpdate{
		Phase:   SubmitJob,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    o.Job,
	}
}

func waitSnapshotUpdate(attempt int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSnapshot,
		Step:    attempt,
		Message: "Snapshot is still being generated...",
	}
}

// jobUpdate converts a poller state change into a progress update.
func jobUpdate(u poller.Update) ProgressUpdate {
	job := u.Job
	name := job.Label
	if name == "" {
		name = string(job.Kind)
	}

	update := ProgressUpdate{Phase: PollJob, Total: 100, Data: job}
	if job.Progress != nil {
		update.Step = *job.Progress
	}

	switch u.Phase {
	case poller.PhaseSubmitting:
		update.Phase = SubmitJob
		if job.ID == "" {
			update.Message = fmt.Sprintf("Submitting %s job...", name)
		} else {
			update.Message = fmt.Sprintf("Job %s accepted", job.ID)
		}
	case poller.PhasePolling:
		update.Message = fmt.Sprintf("[%s] %s", name, statusLabel(job))
	case poller.PhaseSucceeded:
		update.Step = 100
		update.Message = fmt.Sprintf("[%s] ✓ finished", name)
	case poller.PhaseFailed:
		update.Message = fmt.Sprintf("[%s] ✗ %s", name, job.ErrorMessage)
	default:
		update.Message = fmt.Sprintf("[%s] stopped", name)
	}
	return update
}

func statusLabel(job models.Job) string {
	if job.Progress != nil {
		return fmt.Sprintf("%s (%d%%)", job.Status, *job.Progress)
	}
	return job.Status.String()
}
