package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/tasks"
)

// progressView prints [tasks.ProgressUpdate] values. With bars, upload bytes and the percentage of a single job
// are drawn as progress bars; otherwise each job's status is printed as a line whenever it changes.
type progressView struct {
	out    io.Writer
	bars   bool
	upload *progressbar.ProgressBar
	job    *progressbar.ProgressBar
	last   map[string]string // last message per job label
}

func newProgressView(out io.Writer, bars bool) *progressView {
	return &progressView{out: out, bars: bars, last: map[string]string{}}
}

func (v *progressView) handle(u tasks.ProgressUpdate) {
	switch {
	case u.Phase == tasks.UploadFile && v.bars:
		if v.upload == nil {
			v.upload = progressbar.NewOptions64(int64(u.Total),
				progressbar.OptionSetWriter(v.out),
				progressbar.OptionSetDescription("uploading"),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(v.out) }),
			)
		}
		v.upload.ChangeMax64(int64(u.Total))
		_ = v.upload.Set64(int64(u.Step))

	case u.Phase == tasks.PollJob && v.bars:
		v.finishUpload()
		if v.job == nil {
			v.job = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(v.out),
				progressbar.OptionSetWidth(30),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(v.out) }),
			)
		}
		v.job.Describe(u.Message)
		_ = v.job.Set(u.Step)

	case u.Phase == tasks.PollJob:
		label := ""
		if job, ok := u.Data.(models.Job); ok {
			label = job.Label
		}
		if v.last[label] == u.Message {
			return
		}
		v.last[label] = u.Message
		fmt.Fprintf(v.out, "  %s\n", u.Message)

	case u.Phase == tasks.UploadFile:

	default:
		v.finishUpload()
		fmt.Fprintf(v.out, "→ %s\n", u.Message)
	}
}

func (v *progressView) finishUpload() {
	if v.upload != nil && !v.upload.IsFinished() {
		_ = v.upload.Finish()
	}
}

func (v *progressView) finish() {
	v.finishUpload()
	if v.job != nil && !v.job.IsFinished() {
		_ = v.job.Finish()
	}
}

// track starts a goroutine that renders updates to the runner's output. The returned stop func closes the
// channel and waits for rendering to finish; call it only after the producing operation has returned.
func (r *Runner) track(bars bool) (chan tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	view := newProgressView(r.output, bars)

	go func() {
		defer close(done)
		for u := range updates {
			view.handle(u)
		}
		view.finish()
	}()

	return updates, func() {
		close(updates)
		<-done
	}
}
