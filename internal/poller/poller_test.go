package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

const testInterval = 10 * time.Millisecond

// httpSubmit posts to url and maps the response the way the upload endpoint is read.
func httpSubmit(url string) SubmitFunc {
	return func(ctx context.Context) (Submission, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return Submission{}, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return Submission{}, err
		}
		defer resp.Body.Close()

		var body struct {
			JobID string `json:"job_id"`
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Submission{ErrorMessage: "malformed response"}, nil
		}
		if resp.StatusCode != http.StatusAccepted || body.JobID == "" {
			return Submission{ErrorMessage: body.Error}, nil
		}
		return Submission{Accepted: true, JobID: body.JobID}, nil
	}
}

// httpCheck reads /api/job-status/:id from base.
func httpCheck(base string) CheckFunc {
	return func(ctx context.Context, jobID string) (Status, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/job-status/"+jobID, nil)
		if err != nil {
			return Status{}, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return Status{}, err
		}
		defer resp.Body.Close()

		var body struct {
			Status   string           `json:"status"`
			Result   models.JobResult `json:"result"`
			Error    string           `json:"error"`
			Progress *int             `json:"progress"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Status{}, err
		}
		return Status{
			State:    models.ParseJobStatus(body.Status),
			Raw:      body.Status,
			Result:   body.Result,
			Error:    body.Error,
			Progress: body.Progress,
		}, nil
	}
}

// scriptedServer answers the upload endpoint with submitStatus/submitBody and each status poll with the next
// entry of polls (repeating the last one).
type scriptedServer struct {
	*httptest.Server
	polls   atomic.Int32
	mu      sync.Mutex
	paths   []string
	script  []string
	subCode int
	subBody string
}

func newScriptedServer(t *testing.T, subCode int, subBody string, script ...string) *scriptedServer {
	t.Helper()
	s := &scriptedServer{subCode: subCode, subBody: subBody, script: script}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(s.subCode)
			fmt.Fprint(w, s.subBody)
			return
		}

		n := int(s.polls.Add(1))
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()
		if n > len(s.script) {
			n = len(s.script)
		}
		fmt.Fprint(w, s.script[n-1])
	}))
	t.Cleanup(s.Close)
	return s
}

func TestNew(t *testing.T) {
	p := New(func(context.Context, string) (Status, error) { return Status{}, nil }, Options{})

	if p.Interval() != 3*time.Second {
		t.Errorf("expected default interval of 3s, got %v", p.Interval())
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("expected idle, got %s", p.Phase())
	}

	select {
	case <-p.Done():
	default:
		t.Error("Done should be closed before any session starts")
	}
}

func TestSubmit(t *testing.T) {
	t.Run("rejections start no timer", func(t *testing.T) {
		tests := []struct {
			name    string
			code    int
			body    string
			wantMsg string
		}{
			{name: "bad request with error body", code: http.StatusBadRequest, body: `{"error":"bad file"}`, wantMsg: "Error: bad file"},
			{name: "server error without message", code: http.StatusInternalServerError, body: `{}`, wantMsg: "Error: Unknown error"},
			{name: "accepted without id", code: http.StatusAccepted, body: `{"status":"queued"}`, wantMsg: "Error: Unknown error"},
			{name: "ok instead of accepted", code: http.StatusOK, body: `{"job_id":"abc"}`, wantMsg: "Error: Unknown error"},
			{name: "malformed body", code: http.StatusAccepted, body: `not json`, wantMsg: "Error: malformed response"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newScriptedServer(t, tt.code, tt.body, `{"status":"finished"}`)
				p := New(httpCheck(srv.URL), Options{Interval: testInterval})

				sub := p.Submit(context.Background(), httpSubmit(srv.URL+"/api/upload-spotify-json"))
				if sub.Accepted {
					t.Fatal("expected rejected submission")
				}
				if p.Phase() != PhaseFailed {
					t.Errorf("expected failed phase, got %s", p.Phase())
				}
				if got := p.Job().ErrorMessage; got != tt.wantMsg {
					t.Errorf("expected %q, got %q", tt.wantMsg, got)
				}
				if !errors.Is(p.Err(), shared.ErrSubmissionRejected) {
					t.Errorf("expected ErrSubmissionRejected, got %v", p.Err())
				}

				time.Sleep(5 * testInterval)
				if n := srv.polls.Load(); n != 0 {
					t.Errorf("expected no status checks, got %d", n)
				}
			})
		}
	})

	t.Run("transport error", func(t *testing.T) {
		var checks atomic.Int32
		p := New(func(context.Context, string) (Status, error) {
			checks.Add(1)
			return Status{}, nil
		}, Options{Interval: testInterval})

		sub := p.Submit(context.Background(), func(context.Context) (Submission, error) {
			return Submission{}, errors.New("connection refused")
		})
		if sub.Accepted {
			t.Fatal("expected rejected submission")
		}
		if !strings.Contains(p.Job().ErrorMessage, "connection refused") {
			t.Errorf("expected transport error in message, got %q", p.Job().ErrorMessage)
		}
		time.Sleep(5 * testInterval)
		if checks.Load() != 0 {
			t.Error("no check should run after a failed submission")
		}
	})

	t.Run("accepted", func(t *testing.T) {
		srv := newScriptedServer(t, http.StatusAccepted, `{"status":"queued","job_id":"abc"}`, `{"status":"queued"}`)
		p := New(httpCheck(srv.URL), Options{Interval: testInterval})

		sub := p.Submit(context.Background(), httpSubmit(srv.URL+"/api/upload-spotify-json"))
		if !sub.Accepted || sub.JobID != "abc" {
			t.Fatalf("expected accepted abc, got %+v", sub)
		}
		if p.Job().ID != "abc" {
			t.Errorf("expected tracked job abc, got %q", p.Job().ID)
		}
		if p.Err() != nil {
			t.Errorf("unexpected error %v", p.Err())
		}

		time.Sleep(5 * testInterval)
		if n := srv.polls.Load(); n != 0 {
			t.Errorf("Submit alone must not poll, got %d checks", n)
		}
	})
}

func TestRun(t *testing.T) {
	t.Run("three ticks to success", func(t *testing.T) {
		srv := newScriptedServer(t, http.StatusAccepted, `{"status":"queued","job_id":"abc"}`,
			`{"status":"processing"}`,
			`{"status":"processing"}`,
			`{"status":"finished","result":{"inserted":42,"total":50}}`,
		)
		p := New(httpCheck(srv.URL), Options{Interval: testInterval, Kind: models.KindUpload})

		job, err := p.Run(context.Background(), httpSubmit(srv.URL+"/api/upload-spotify-json"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		summary := models.UploadSummaryFrom(job.Result)
		if summary.Inserted != 42 || summary.Total != 50 {
			t.Errorf("expected inserted=42 total=50, got %+v", summary)
		}
		if job.Status != models.JobSucceeded || p.Phase() != PhaseSucceeded {
			t.Errorf("expected succeeded, got %s / %s", job.Status, p.Phase())
		}
		if job.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", job.Attempts)
		}

		time.Sleep(5 * testInterval)
		if n := srv.polls.Load(); n != 3 {
			t.Errorf("expected exactly 3 status checks, got %d", n)
		}
		srv.mu.Lock()
		defer srv.mu.Unlock()
		for _, path := range srv.paths {
			if path != "/api/job-status/abc" {
				t.Errorf("unexpected status path %s", path)
			}
		}
	})

	t.Run("failure sentinel", func(t *testing.T) {
		tests := []struct {
			name    string
			body    string
			wantMsg string
		}{
			{name: "server message", body: `{"status":"failed","error":"Uploaded file is not a list"}`, wantMsg: "Uploaded file is not a list"},
			{name: "generic message", body: `{"status":"FAILURE"}`, wantMsg: "Job failed"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newScriptedServer(t, http.StatusAccepted, `{"job_id":"abc"}`, `{"status":"started"}`, tt.body)
				p := New(httpCheck(srv.URL), Options{Interval: testInterval})

				job, err := p.Run(context.Background(), httpSubmit(srv.URL+"/upload"))
				if !errors.Is(err, shared.ErrJobFailed) {
					t.Fatalf("expected ErrJobFailed, got %v", err)
				}
				if job.ErrorMessage != tt.wantMsg {
					t.Errorf("expected %q, got %q", tt.wantMsg, job.ErrorMessage)
				}
				if job.Status != models.JobFailed {
					t.Errorf("expected failed status, got %s", job.Status)
				}

				time.Sleep(5 * testInterval)
				if n := srv.polls.Load(); n != 2 {
					t.Errorf("expected 2 status checks, got %d", n)
				}
			})
		}
	})

	t.Run("transport error while polling", func(t *testing.T) {
		var checks atomic.Int32
		check := func(ctx context.Context, id string) (Status, error) {
			if checks.Add(1) == 2 {
				return Status{}, errors.New("network is unreachable")
			}
			return Status{State: models.JobProcessing}, nil
		}
		p := New(check, Options{Interval: testInterval})

		job, err := p.Run(context.Background(), func(context.Context) (Submission, error) {
			return Submission{Accepted: true, JobID: "abc"}, nil
		})
		if !errors.Is(err, shared.ErrPolling) {
			t.Fatalf("expected ErrPolling, got %v", err)
		}
		if !strings.HasPrefix(job.ErrorMessage, "Polling error") {
			t.Errorf("expected polling error message, got %q", job.ErrorMessage)
		}

		time.Sleep(5 * testInterval)
		if n := checks.Load(); n != 2 {
			t.Errorf("expected no requests after the failure, got %d checks", n)
		}
	})

	t.Run("max attempts", func(t *testing.T) {
		var checks atomic.Int32
		p := New(func(context.Context, string) (Status, error) {
			checks.Add(1)
			return Status{State: models.JobProcessing}, nil
		}, Options{Interval: testInterval, MaxAttempts: 3})

		job, err := p.Run(context.Background(), func(context.Context) (Submission, error) {
			return Submission{Accepted: true, JobID: "abc"}, nil
		})
		if !errors.Is(err, shared.ErrMaxAttempts) {
			t.Fatalf("expected ErrMaxAttempts, got %v", err)
		}
		if job.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", job.Attempts)
		}
		time.Sleep(5 * testInterval)
		if n := checks.Load(); n != 3 {
			t.Errorf("expected 3 checks, got %d", n)
		}
	})

	t.Run("progress is surfaced", func(t *testing.T) {
		steps := []int{10, 55}
		var checks atomic.Int32
		check := func(context.Context, string) (Status, error) {
			n := int(checks.Add(1))
			if n <= len(steps) {
				pct := steps[n-1]
				return Status{State: models.JobProcessing, Raw: "PROGRESS", Progress: &pct}, nil
			}
			return Status{State: models.JobSucceeded, Raw: "SUCCESS"}, nil
		}

		var mu sync.Mutex
		var seen []int
		p := New(check, Options{Interval: testInterval, OnChange: func(u Update) {
			if u.Phase == PhasePolling && u.Job.Progress != nil {
				mu.Lock()
				seen = append(seen, *u.Job.Progress)
				mu.Unlock()
			}
		}})

		if _, err := p.Run(context.Background(), func(context.Context) (Submission, error) {
			return Submission{Accepted: true, JobID: "task-1"}, nil
		}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(seen) != 2 || seen[0] != 10 || seen[1] != 55 {
			t.Errorf("expected progress [10 55], got %v", seen)
		}
	})

	t.Run("custom predicates", func(t *testing.T) {
		check := func(context.Context, string) (Status, error) {
			return Status{Raw: "done"}, nil
		}
		p := New(check, Options{
			Interval:  testInterval,
			Succeeded: func(s Status) bool { return s.Raw == "done" },
		})

		if _, err := p.Run(context.Background(), func(context.Context) (Submission, error) {
			return Submission{Accepted: true, JobID: "x"}, nil
		}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if p.Phase() != PhaseSucceeded {
			t.Errorf("expected succeeded, got %s", p.Phase())
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		var checks atomic.Int32
		p := New(func(context.Context, string) (Status, error) {
			checks.Add(1)
			return Status{State: models.JobQueued}, nil
		}, Options{Interval: testInterval})

		ctx, cancel := context.WithTimeout(context.Background(), 5*testInterval)
		defer cancel()

		_, err := p.Run(ctx, func(context.Context) (Submission, error) {
			return Submission{Accepted: true, JobID: "abc"}, nil
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}

		<-p.Done()
		n := checks.Load()
		time.Sleep(5 * testInterval)
		if checks.Load() != n {
			t.Error("checks continued after cancellation")
		}
	})
}

func TestStop(t *testing.T) {
	t.Run("twice is the same as once", func(t *testing.T) {
		var checks atomic.Int32
		p := New(func(context.Context, string) (Status, error) {
			checks.Add(1)
			return Status{State: models.JobProcessing}, nil
		}, Options{Interval: testInterval})

		p.Start(context.Background(), "abc")
		time.Sleep(3 * testInterval)

		p.Stop()
		phase, job := p.Phase(), p.Job()
		p.Stop()

		if p.Phase() != phase || p.Phase() != PhaseIdle {
			t.Errorf("expected idle after both stops, got %s then %s", phase, p.Phase())
		}
		if p.Job().Attempts != job.Attempts {
			t.Error("second Stop changed the job")
		}

		<-p.Done()
		n := checks.Load()
		time.Sleep(5 * testInterval)
		if checks.Load() != n {
			t.Error("checks continued after Stop")
		}
	})

	t.Run("without a session", func(t *testing.T) {
		p := New(func(context.Context, string) (Status, error) { return Status{}, nil }, Options{})
		p.Stop()
		p.Stop()
		if p.Phase() != PhaseIdle {
			t.Errorf("expected idle, got %s", p.Phase())
		}
	})

	t.Run("keeps terminal state", func(t *testing.T) {
		p := New(func(context.Context, string) (Status, error) {
			return Status{State: models.JobSucceeded}, nil
		}, Options{Interval: testInterval})

		p.Start(context.Background(), "abc")
		<-p.Done()
		p.Stop()
		if p.Phase() != PhaseSucceeded {
			t.Errorf("Stop after completion should keep succeeded, got %s", p.Phase())
		}
	})

	t.Run("no update after teardown", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		check := func(ctx context.Context, id string) (Status, error) {
			close(entered)
			<-release
			return Status{State: models.JobSucceeded, Result: models.JobResult{"inserted": 1}}, nil
		}

		var stopped atomic.Bool
		var late atomic.Int32
		p := New(check, Options{Interval: testInterval, OnChange: func(Update) {
			if stopped.Load() {
				late.Add(1)
			}
		}})

		p.Start(context.Background(), "abc")
		<-entered
		p.Stop()
		stopped.Store(true)
		close(release)
		<-p.Done()

		if n := late.Load(); n != 0 {
			t.Errorf("expected no OnChange after Stop, got %d", n)
		}
		if p.Phase() != PhaseIdle {
			t.Errorf("expected idle, got %s", p.Phase())
		}
		if p.Job().Result != nil {
			t.Error("late tick must not record a result")
		}
	})
}

func TestStart_ReplacesSession(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	check := func(ctx context.Context, id string) (Status, error) {
		mu.Lock()
		seen[id]++
		mu.Unlock()
		return Status{State: models.JobProcessing}, nil
	}
	p := New(check, Options{Interval: testInterval})

	p.Start(context.Background(), "first")
	first := p.Done()
	time.Sleep(3 * testInterval)

	p.Start(context.Background(), "second")
	<-first

	mu.Lock()
	before := seen["first"]
	mu.Unlock()

	time.Sleep(5 * testInterval)
	p.Stop()
	<-p.Done()

	mu.Lock()
	defer mu.Unlock()
	if seen["first"] != before {
		t.Errorf("replaced session kept polling: %d -> %d", before, seen["first"])
	}
	if seen["second"] == 0 {
		t.Error("replacement session never polled")
	}
	if p.Job().ID != "second" {
		t.Errorf("expected tracked job second, got %s", p.Job().ID)
	}
}

func TestSubmit_ReplacesSession(t *testing.T) {
	var checks atomic.Int32
	p := New(func(context.Context, string) (Status, error) {
		checks.Add(1)
		return Status{State: models.JobProcessing}, nil
	}, Options{Interval: testInterval})

	p.Start(context.Background(), "old")
	old := p.Done()
	p.Submit(context.Background(), func(context.Context) (Submission, error) {
		return Submission{ErrorMessage: "bad file"}, nil
	})
	<-old

	n := checks.Load()
	time.Sleep(5 * testInterval)
	if checks.Load() != n {
		t.Error("new submission should cancel the previous timer")
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		PhaseIdle:       "idle",
		PhaseSubmitting: "submitting",
		PhasePolling:    "polling",
		PhaseSucceeded:  "succeeded",
		PhaseFailed:     "failed",
		Phase(99):       "",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
