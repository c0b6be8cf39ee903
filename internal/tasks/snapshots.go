package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/poller"
	"github.com/desertthunder/yomi/internal/shared"
)

// latestSnapshotID labels the pseudo-job used while waiting for the lifetime snapshot.
const latestSnapshotID = "lifetime-latest"

// SnapshotOutcome is the result of one period's snapshot job.
type SnapshotOutcome struct {
	Period string
	Job    models.Job
	Err    error
}

// SnapshotBatchResult collects the outcomes of [JobEngine.GenerateSnapshots] in request order.
type SnapshotBatchResult struct {
	Outcomes  []SnapshotOutcome
	Succeeded int
	Failed    int
}

// Err summarises failed periods, or returns nil when every job succeeded.
func (r *SnapshotBatchResult) Err() error {
	if r.Failed == 0 {
		return nil
	}
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Period, o.Err))
		}
	}
	return fmt.Errorf("%d of %d snapshot jobs failed: %w", r.Failed, len(r.Outcomes), errors.Join(errs...))
}

type indexedJob struct {
	i   int
	job models.SnapshotJob
}

type indexedOutcome struct {
	i int
	o SnapshotOutcome
}

// GenerateSnapshots requests snapshots for periods and polls every returned job concurrently.
//
// Status checks from all workers share one rate limiter. A failed period does not stop the others; inspect the
// returned result for per-period errors. The error return is reserved for invalid input, rejected submissions
// and cancellation.
func (e *JobEngine) GenerateSnapshots(ctx context.Context, periods []string, progress chan<- ProgressUpdate) (*SnapshotBatchResult, error) {
	periods, err := normalizePeriods(periods)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, submitSnapshotsUpdate(periods))
	jobs, err := e.api.SubmitSnapshots(ctx, periods)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if e.opts.StatusRate > 0 {
		limit = rate.Limit(e.opts.StatusRate)
	}
	limiter := rate.NewLimiter(limit, 1)
	check := func(ctx context.Context, jobID string) (poller.Status, error) {
		if err := limiter.Wait(ctx); err != nil {
			return poller.Status{}, err
		}
		return e.api.CheckStatus(ctx, jobID)
	}

	work := make(chan indexedJob, len(jobs))
	results := make(chan indexedOutcome, len(jobs))

	workers := min(e.opts.Workers, len(jobs))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range work {
				results <- indexedOutcome{i: w.i, o: e.pollSnapshot(ctx, check, w.job, progress)}
			}
		}()
	}

	for i, j := range jobs {
		work <- indexedJob{i: i, job: j}
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	batch := &SnapshotBatchResult{Outcomes: make([]SnapshotOutcome, len(jobs))}
	completed := 0
	for r := range results {
		completed++
		batch.Outcomes[r.i] = r.o
		if r.o.Err != nil {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
		sendProgress(progress, snapshotDoneUpdate(completed, len(jobs), r.o))
	}

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

func (e *JobEngine) pollSnapshot(ctx context.Context, check poller.CheckFunc, sj models.SnapshotJob, progress chan<- ProgressUpdate) SnapshotOutcome {
	kind := models.KindSnapshot
	if sj.Period == "lifetime" {
		kind = models.KindLifetime
	}
	p := e.newPoller(check, kind, sj.Period, progress)
	job, err := e.follow(ctx, p, sj.JobID)
	return SnapshotOutcome{Period: sj.Period, Job: job, Err: err}
}

// GenerateCustomSnapshot requests a snapshot for [start, end) and polls it.
func (e *JobEngine) GenerateCustomSnapshot(ctx context.Context, start, end time.Time, progress chan<- ProgressUpdate) (models.Job, error) {
	if start.IsZero() || end.IsZero() {
		return models.Job{}, fmt.Errorf("%w: start and end are required", shared.ErrInvalidInput)
	}
	if !start.Before(end) {
		return models.Job{}, fmt.Errorf("%w: start must be before end", shared.ErrInvalidInput)
	}

	label := fmt.Sprintf("%s..%s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	p := e.newPoller(e.api.CheckStatus, models.KindSnapshot, label, progress)
	return e.track(ctx, p, func(ctx context.Context) (poller.Submission, error) {
		return e.api.SubmitCustomSnapshot(ctx, start, end)
	})
}

// LatestSnapshot fetches the lifetime snapshot. With wait, a snapshot that is still being generated is polled
// until it is ready; without it [shared.ErrSnapshotNotReady] is returned.
func (e *JobEngine) LatestSnapshot(ctx context.Context, wait bool, progress chan<- ProgressUpdate) (*models.Snapshot, error) {
	if e.snapshots == nil {
		return nil, fmt.Errorf("%w: snapshot reader not configured", shared.ErrServiceUnavailable)
	}

	snap, err := e.snapshots.LatestSnapshot(ctx)
	if err == nil || !wait || !errors.Is(err, shared.ErrSnapshotNotReady) {
		return snap, err
	}

	var (
		mu     sync.Mutex
		latest *models.Snapshot
	)
	check := func(ctx context.Context, _ string) (poller.Status, error) {
		s, err := e.snapshots.PollLatestSnapshot(ctx)
		switch {
		case errors.Is(err, shared.ErrSnapshotNotReady):
			return poller.Status{State: models.JobProcessing, Raw: "processing"}, nil
		case err != nil:
			return poller.Status{}, err
		}
		mu.Lock()
		latest = s
		mu.Unlock()
		return poller.Status{State: models.JobSucceeded, Raw: "ready"}, nil
	}

	p := poller.New(check, poller.Options{
		Interval:    e.opts.Interval,
		MaxAttempts: e.opts.MaxAttempts,
		Kind:        models.KindLifetime,
		Label:       "lifetime",
		Logger:      e.logger,
		OnChange: func(u poller.Update) {
			if !u.Phase.Terminal() {
				sendProgress(progress, waitSnapshotUpdate(u.Job.Attempts+1))
			}
		},
	})
	p.Start(ctx, latestSnapshotID)
	if _, err := p.Wait(ctx); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return latest, nil
}

// normalizePeriods validates periods and drops duplicates, keeping the first occurrence.
func normalizePeriods(periods []string) ([]string, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: at least one period is required", shared.ErrMissingArgument)
	}

	seen := make(map[string]bool, len(periods))
	out := make([]string, 0, len(periods))
	for _, p := range periods {
		if !models.IsSnapshotPeriod(p) {
			return nil, fmt.Errorf("%w: invalid period %q (want one of %v)", shared.ErrInvalidArgument, p, models.SnapshotPeriods)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}
