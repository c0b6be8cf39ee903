package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/yomi/internal/formatter"
	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/poller"
	"github.com/desertthunder/yomi/internal/shared"
)

// Upload validates and uploads a streaming history export, then polls the import job.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file path is required", shared.ErrMissingArgument)
	}

	r.ensureSynced(ctx)
	r.logger.Info("uploading streaming history", "path", path)

	updates, stop := r.track(!cmd.Bool("json"))
	result, err := r.engine.Upload(ctx, path, updates)
	stop()

	if cmd.Bool("json") && result != nil {
		if werr := r.writeJSON(result, true); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return nil
	}

	r.writePlainHeader("Upload Complete")
	r.writePlain("File: %s (%d bytes)\n", path, result.Size)
	r.writePlain("Job: %s\n", result.Job.ID)
	r.writePlain("Imported: %d of %d streams\n", result.Summary.Inserted, result.Summary.Total)
	if skipped := result.Summary.Total - result.Summary.Inserted; skipped > 0 {
		r.writePlain("Skipped: %d (duplicates, podcasts or records without a track)\n", skipped)
	}
	return nil
}

// JobsStatus checks a job's status once without polling. A failed job, including one the server does not know,
// is reported and returned as [shared.ErrJobFailed].
func (r *Runner) JobsStatus(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	st, err := r.jobs.CheckStatus(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(map[string]any{
			"id":       id,
			"status":   st.State,
			"raw":      st.Raw,
			"progress": st.Progress,
			"result":   st.Result,
			"error":    st.Error,
		}, true); err != nil {
			return err
		}
		return jobStatusErr(st)
	}

	r.writePlain("Job: %s\n", id)
	r.writePlain("Status: %s (%s)\n", st.State, st.Raw)
	if st.Progress != nil {
		r.writePlain("Progress: %d%%\n", *st.Progress)
	}
	if st.Error != "" {
		r.writePlain("Error: %s\n", st.Error)
	}
	if len(st.Result) > 0 {
		r.writePlain("Result:\n")
		r.writeJSON(st.Result, true)
	}
	return jobStatusErr(st)
}

func jobStatusErr(st poller.Status) error {
	if st.State != models.JobFailed {
		return nil
	}
	msg := st.Error
	if msg == "" {
		msg = "job failed"
	}
	return fmt.Errorf("%w: %s", shared.ErrJobFailed, msg)
}

// JobsWatch polls an existing job until it reaches a terminal state.
func (r *Runner) JobsWatch(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	updates, stop := r.track(!cmd.Bool("json"))
	job, err := r.engine.Watch(ctx, id, updates)
	stop()

	if cmd.Bool("json") && job.ID != "" {
		if werr := r.writeJSON(job, true); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Job %s %s after %d checks\n", job.ID, job.Status, job.Attempts)
	}
	return nil
}

// JobsHistory lists jobs recorded in the local database, newest first.
func (r *Runner) JobsHistory(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: job history needs a database (run 'yomi setup database')", shared.ErrServiceUnavailable)
	}

	records, err := r.history.List(ctx, map[string]any{
		"kind":   cmd.String("kind"),
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		jobs := make([]models.Job, len(records))
		for i, rec := range records {
			jobs[i] = rec.Job
		}
		return r.writeJSON(jobs, true)
	}

	if len(records) == 0 {
		return r.writePlain("No jobs recorded\n")
	}
	for _, rec := range records {
		j := rec.Job
		label := j.Label
		if label == "" {
			label = "-"
		}
		r.writePlain("%-36s  %-8s  %-12s  %-10s  %s\n", j.ID, j.Kind, label, j.Status, j.UpdatedAt.Local().Format("2006-01-02 15:04"))
		if j.ErrorMessage != "" {
			r.writePlain("    %s\n", j.ErrorMessage)
		}
	}
	return nil
}

// SnapshotsGenerate requests snapshots for the given periods and waits for every job. A failed period is
// reported after the others finish.
func (r *Runner) SnapshotsGenerate(ctx context.Context, cmd *cli.Command) error {
	periods := cmd.StringSlice("period")
	if len(periods) == 0 {
		periods = models.SnapshotPeriods
	}

	r.ensureSynced(ctx)

	updates, stop := r.track(false)
	result, err := r.engine.GenerateSnapshots(ctx, periods, updates)
	stop()
	if err != nil && result == nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]map[string]any, len(result.Outcomes))
		for i, o := range result.Outcomes {
			out[i] = map[string]any{"period": o.Period, "job": o.Job}
			if o.Err != nil {
				out[i]["error"] = o.Err.Error()
			}
		}
		if werr := r.writeJSON(out, true); werr != nil {
			return werr
		}
	} else {
		r.writePlainln("%d of %d snapshots ready", result.Succeeded, len(result.Outcomes))
		for _, o := range result.Outcomes {
			if o.Err != nil {
				r.writePlain("  ✗ %-9s %v\n", o.Period, o.Err)
				continue
			}
			r.writePlain("  ✓ %-9s %s\n", o.Period, o.Job.ID)
		}
	}

	if err != nil {
		return err
	}
	return result.Err()
}

// SnapshotsCustom generates a snapshot for an arbitrary date range.
func (r *Runner) SnapshotsCustom(ctx context.Context, cmd *cli.Command) error {
	start, err := parseDate(cmd.String("start"))
	if err != nil {
		return err
	}
	end, err := parseDate(cmd.String("end"))
	if err != nil {
		return err
	}

	r.ensureSynced(ctx)

	updates, stop := r.track(!cmd.Bool("json"))
	job, err := r.engine.GenerateCustomSnapshot(ctx, start, end, updates)
	stop()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}
	r.writePlain("✓ Snapshot for %s ready (job %s)\n", job.Label, job.ID)
	if total, ok := job.Result.Int("total_streams"); ok {
		r.writePlain("Streams: %d\n", total)
	}
	return nil
}

// SnapshotsLatest prints the latest lifetime snapshot.
func (r *Runner) SnapshotsLatest(ctx context.Context, cmd *cli.Command) error {
	updates, stop := r.track(false)
	snap, err := r.engine.LatestSnapshot(ctx, cmd.Bool("wait"), updates)
	stop()

	if errors.Is(err, shared.ErrSnapshotNotReady) {
		return fmt.Errorf("%w: run again with --wait to poll until it is ready", err)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(snap, true)
	}
	return r.writeBytes(formatter.SnapshotToText(snap))
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD or RFC3339", shared.ErrInvalidArgument, s)
	}
	return t, nil
}
