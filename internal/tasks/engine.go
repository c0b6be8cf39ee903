package tasks

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/poller"
	"github.com/desertthunder/yomi/internal/shared"
)

// JobAPI submits jobs and checks their status. [services.JobClient] implements it.
type JobAPI interface {
	SubmitUpload(ctx context.Context, filename string, content io.Reader, progress io.Writer) (poller.Submission, error)
	SubmitSnapshots(ctx context.Context, periods []string) ([]models.SnapshotJob, error)
	SubmitCustomSnapshot(ctx context.Context, start, end time.Time) (poller.Submission, error)
	CheckStatus(ctx context.Context, jobID string) (poller.Status, error)
}

// SnapshotReader fetches the latest lifetime snapshot. [services.StatsService] implements it.
//
// PollLatestSnapshot must make a single request: waiting for a snapshot treats any failed check as final.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (*models.Snapshot, error)
	PollLatestSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// JobRecorder persists observed jobs.
type JobRecorder interface {
	Record(ctx context.Context, job models.Job) error
}

// EngineOptions configures a [JobEngine].
type EngineOptions struct {
	Interval    time.Duration // Delay between status checks (default: poller.DefaultInterval)
	MaxAttempts int           // Status checks per job before giving up (0: unbounded)
	Workers     int           // Concurrent snapshot pollers (default: 4, max: 10)
	StatusRate  float64       // Status checks per second shared by all snapshot pollers (0: unlimited)
	Logger      *log.Logger
}

// JobEngine orchestrates job submission and polling.
type JobEngine struct {
	api       JobAPI
	snapshots SnapshotReader
	recorder  JobRecorder
	opts      EngineOptions
	logger    *log.Logger
}

// NewJobEngine creates a JobEngine. snapshots and recorder may be nil.
func NewJobEngine(api JobAPI, snapshots SnapshotReader, recorder JobRecorder, opts EngineOptions) *JobEngine {
	if opts.Interval <= 0 {
		opts.Interval = poller.DefaultInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > 10 {
		opts.Workers = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &JobEngine{api: api, snapshots: snapshots, recorder: recorder, opts: opts, logger: logger}
}

// Watch polls an already submitted job until it finishes.
func (e *JobEngine) Watch(ctx context.Context, jobID string, progress chan<- ProgressUpdate) (models.Job, error) {
	if jobID == "" {
		return models.Job{}, shared.ErrMissingArgument
	}
	p := e.newPoller(e.api.CheckStatus, "", "", progress)
	return e.follow(ctx, p, jobID)
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *JobEngine) newPoller(check poller.CheckFunc, kind models.JobKind, label string, progress chan<- ProgressUpdate) *poller.Poller {
	return poller.New(check, poller.Options{
		Interval:    e.opts.Interval,
		MaxAttempts: e.opts.MaxAttempts,
		Kind:        kind,
		Label:       label,
		Logger:      shared.WithLogger(e.logger, "kind", kind, "label", label),
		OnChange: func(u poller.Update) {
			sendProgress(progress, jobUpdate(u))
		},
	})
}

// track submits a job through p and follows it to a terminal state.
func (e *JobEngine) track(ctx context.Context, p *poller.Poller, submit poller.SubmitFunc) (models.Job, error) {
	sub := p.Submit(ctx, submit)
	if !sub.Accepted {
		if err := ctx.Err(); err != nil {
			return p.Job(), err
		}
		return p.Job(), p.Err()
	}
	return e.follow(ctx, p, sub.JobID)
}

// follow polls jobID with p, recording the job when polling starts and when it ends.
func (e *JobEngine) follow(ctx context.Context, p *poller.Poller, jobID string) (models.Job, error) {
	p.Start(ctx, jobID)
	e.record(ctx, p.Job())

	job, err := p.Wait(ctx)
	e.record(context.WithoutCancel(ctx), job)
	return job, err
}

func (e *JobEngine) record(ctx context.Context, job models.Job) {
	if e.recorder == nil || job.ID == "" {
		return
	}
	if err := e.recorder.Record(ctx, job); err != nil {
		e.logger.Warn("failed to record job", "job", job.ID, "error", err)
	}
}
