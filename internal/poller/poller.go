// package poller submits long-running jobs to the listening-history API and polls their status until they finish.
//
// A [Poller] owns one slot: starting a new submission or polling session cancels whatever the slot was tracking.
// Every session runs in its own goroutine with a single timer; the next check is scheduled only after the
// previous response has been applied, so checks for a job never overlap. State changes are guarded by a
// generation counter captured when a session starts, which lets [Poller.Stop] guarantee that nothing from the
// stopped session is applied or reported afterwards.
package poller

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

// DefaultInterval is the delay between status checks.
const DefaultInterval = 3 * time.Second

// Submission is the outcome of an initiating request.
type Submission struct {
	Accepted     bool
	JobID        string
	ErrorMessage string
}

// Status is one status check response mapped onto the canonical vocabulary.
type Status struct {
	State    models.JobStatus
	Raw      string // status string as reported by the server
	Progress *int
	Result   models.JobResult
	Error    string
}

// SubmitFunc performs the initiating request. A returned error is treated as a rejected submission.
type SubmitFunc func(ctx context.Context) (Submission, error)

// CheckFunc fetches the current status of a job. A returned error ends the polling session.
type CheckFunc func(ctx context.Context, jobID string) (Status, error)

// Phase is the poller's position in the job lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhasePolling
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhasePolling:
		return "polling"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether the phase ends a job's lifecycle.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Update is delivered to [Options.OnChange] after every observable state change.
type Update struct {
	Phase Phase
	Job   models.Job
	Err   error
}

// Options configures a [Poller]. The zero value polls every [DefaultInterval] with no attempt cap.
type Options struct {
	Interval    time.Duration
	MaxAttempts int // 0 means unbounded

	// Succeeded and Failed decide when a status is terminal. They default to the canonical
	// succeeded and failed states.
	Succeeded func(Status) bool
	Failed    func(Status) bool

	Kind  models.JobKind
	Label string

	Logger *log.Logger

	// OnChange runs with the poller's lock held and must not call back into the poller.
	OnChange func(Update)
}

// Poller tracks one job at a time.
type Poller struct {
	check CheckFunc
	opts  Options
	log   *log.Logger

	mu     sync.Mutex
	gen    uint64
	phase  Phase
	job    models.Job
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Poller that checks status with check.
func New(check CheckFunc, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.Succeeded == nil {
		opts.Succeeded = func(s Status) bool { return s.State == models.JobSucceeded }
	}
	if opts.Failed == nil {
		opts.Failed = func(s Status) bool { return s.State == models.JobFailed }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	done := make(chan struct{})
	close(done)

	return &Poller{check: check, opts: opts, log: logger, done: done}
}

// Interval returns the configured delay between checks.
func (p *Poller) Interval() time.Duration { return p.opts.Interval }

// Submit performs the initiating request and reports whether it was accepted.
//
// It replaces any session the poller was running but starts no timer; call [Poller.Start] with the returned
// job id to begin polling. A rejection moves the poller to [PhaseFailed] with an [shared.ErrSubmissionRejected].
func (p *Poller) Submit(ctx context.Context, submit SubmitFunc) Submission {
	p.mu.Lock()
	p.cancelLocked()
	p.gen++
	gen := p.gen
	subCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.phase = PhaseSubmitting
	p.err = nil
	p.job = models.Job{Kind: p.opts.Kind, Label: p.opts.Label}
	p.emitLocked()
	p.mu.Unlock()

	sub, err := submit(subCtx)
	cancel()
	switch {
	case err != nil:
		sub = Submission{ErrorMessage: err.Error()}
	case sub.Accepted && sub.JobID == "":
		sub = Submission{ErrorMessage: "response did not include a job id"}
	case !sub.Accepted && sub.ErrorMessage == "":
		sub.ErrorMessage = "Unknown error"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return sub
	}
	p.cancel = nil

	if !sub.Accepted {
		p.log.Warn("submission rejected", "kind", p.opts.Kind, "error", sub.ErrorMessage)
		p.phase = PhaseFailed
		p.job.Status = models.JobFailed
		p.job.ErrorMessage = "Error: " + sub.ErrorMessage
		p.err = fmt.Errorf("%w: %s", shared.ErrSubmissionRejected, sub.ErrorMessage)
		p.emitLocked()
		return sub
	}

	p.log.Debug("submission accepted", "kind", p.opts.Kind, "job", sub.JobID)
	p.job.ID = sub.JobID
	p.job.Status = models.JobQueued
	p.emitLocked()
	return sub
}

// Start begins polling jobID, replacing any session already running. The first check happens one interval
// after Start.
func (p *Poller) Start(ctx context.Context, jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	p.gen++
	gen := p.gen

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	job := models.NewJob(jobID, p.opts.Kind, p.opts.Label)
	p.job = *job
	p.phase = PhasePolling
	p.err = nil
	p.emitLocked()

	p.log.Debug("polling started", "job", jobID, "interval", p.opts.Interval)
	go p.loop(sessionCtx, gen, jobID, done)
}

// Stop cancels the active session, if any. Calling it again is a no-op.
//
// Once Stop returns, the stopped session neither mutates state nor calls OnChange, even if a check
// was in flight.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}
	p.cancelLocked()
	p.gen++
	if !p.phase.Terminal() {
		p.phase = PhaseIdle
	}
	p.log.Debug("polling stopped", "job", p.job.ID)
}

// Run submits a job, polls it until it reaches a terminal state and returns the final job.
//
// Cancelling ctx stops the session and returns ctx's error.
func (p *Poller) Run(ctx context.Context, submit SubmitFunc) (models.Job, error) {
	sub := p.Submit(ctx, submit)
	if !sub.Accepted {
		if err := ctx.Err(); err != nil {
			return p.Job(), err
		}
		return p.Job(), p.Err()
	}
	if p.Phase() != PhaseSubmitting {
		return p.Job(), fmt.Errorf("%w: stopped before job %s was polled", shared.ErrPolling, sub.JobID)
	}

	p.Start(ctx, sub.JobID)
	return p.Wait(ctx)
}

// Wait blocks until the current session ends or ctx is cancelled.
func (p *Poller) Wait(ctx context.Context) (models.Job, error) {
	select {
	case <-p.Done():
	case <-ctx.Done():
		p.Stop()
		return p.Job(), ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.phase {
	case PhaseSucceeded:
		return p.job.Clone(), nil
	case PhaseFailed:
		return p.job.Clone(), p.err
	default:
		if err := ctx.Err(); err != nil {
			return p.job.Clone(), err
		}
		return p.job.Clone(), fmt.Errorf("%w: polling stopped before job %s finished", shared.ErrPolling, p.job.ID)
	}
}

// Job returns a copy of the tracked job.
func (p *Poller) Job() models.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job.Clone()
}

// Phase returns the current lifecycle phase.
func (p *Poller) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Err returns the error that ended the last session, if any.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done returns a channel that is closed when the current polling session's goroutine exits.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) loop(ctx context.Context, gen uint64, jobID string, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(p.opts.Interval)
	defer timer.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		attempts++
		status, err := p.check(ctx, jobID)
		if ctx.Err() != nil {
			return
		}
		if p.apply(gen, attempts, status, err) {
			return
		}
		timer.Reset(p.opts.Interval)
	}
}

// apply records one check result and reports whether the session is over.
func (p *Poller) apply(gen uint64, attempts int, status Status, checkErr error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen {
		return true
	}

	p.job.Attempts = attempts
	p.job.UpdatedAt = time.Now()

	if checkErr != nil {
		p.log.Error("status check failed", "job", p.job.ID, "attempt", attempts, "error", checkErr)
		p.finishLocked(PhaseFailed, fmt.Errorf("%w: %v", shared.ErrPolling, checkErr))
		p.job.ErrorMessage = "Polling error: " + checkErr.Error()
		p.emitLocked()
		return true
	}

	if status.Progress != nil {
		pct := *status.Progress
		p.job.Progress = &pct
	}

	switch {
	case p.opts.Succeeded(status):
		p.job.Result = status.Result
		p.finishLocked(PhaseSucceeded, nil)
		p.log.Info("job succeeded", "job", p.job.ID, "attempts", attempts)
	case p.opts.Failed(status):
		msg := status.Error
		if msg == "" {
			msg = "Job failed"
		}
		p.job.Result = status.Result
		p.job.ErrorMessage = msg
		p.finishLocked(PhaseFailed, fmt.Errorf("%w: %s", shared.ErrJobFailed, msg))
		p.log.Warn("job failed", "job", p.job.ID, "error", msg)
	case p.opts.MaxAttempts > 0 && attempts >= p.opts.MaxAttempts:
		p.job.ErrorMessage = fmt.Sprintf("gave up after %d status checks", attempts)
		p.finishLocked(PhaseFailed, fmt.Errorf("%w: %d", shared.ErrMaxAttempts, attempts))
		p.log.Warn("job abandoned", "job", p.job.ID, "attempts", attempts)
	default:
		if status.State != "" && !status.State.IsTerminal() {
			p.job.Status = status.State
		} else {
			p.job.Status = models.JobProcessing
		}
		p.log.Debug("job pending", "job", p.job.ID, "status", status.Raw, "attempt", attempts)
		p.emitLocked()
		return false
	}

	p.emitLocked()
	return true
}

func (p *Poller) finishLocked(phase Phase, err error) {
	p.phase = phase
	p.err = err
	if phase == PhaseSucceeded {
		p.job.Status = models.JobSucceeded
		pct := 100
		p.job.Progress = &pct
	} else {
		p.job.Status = models.JobFailed
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) cancelLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) emitLocked() {
	if p.opts.OnChange == nil {
		return
	}
	p.opts.OnChange(Update{Phase: p.phase, Job: p.job.Clone(), Err: p.err})
}
