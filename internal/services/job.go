package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/poller"
	"github.com/desertthunder/yomi/internal/shared"
)

const (
	uploadPath         = "/api/upload-spotify-json"
	snapshotsPath      = "/api/snapshots/generate"
	customSnapshotPath = "/api/snapshots/generate/custom"
	jobStatusPath      = "/api/job-status/"
	taskStatusPath     = "/api/task-status/"
)

// JobClient submits jobs and checks their status.
type JobClient struct {
	api          *APIService
	taskEndpoint bool
}

// NewJobClient creates a JobClient. When taskEndpoint is set, status checks go to /api/task-status/:id
// instead of /api/job-status/:id.
func NewJobClient(api *APIService, taskEndpoint bool) *JobClient {
	return &JobClient{api: api, taskEndpoint: taskEndpoint}
}

// StatusPath returns the status endpoint path for jobID.
func (c *JobClient) StatusPath(jobID string) string {
	if c.taskEndpoint {
		return taskStatusPath + url.PathEscape(jobID)
	}
	return jobStatusPath + url.PathEscape(jobID)
}

// SubmitUpload uploads a streaming history export. See [APIService.Upload] for progress.
func (c *JobClient) SubmitUpload(ctx context.Context, filename string, content io.Reader, progress io.Writer) (poller.Submission, error) {
	resp, err := c.api.Upload(ctx, uploadPath, filename, content, progress)
	if err != nil {
		return poller.Submission{}, err
	}
	return DecodeSubmission(resp), nil
}

// SubmitSnapshots requests snapshots for periods.
//
// The batch endpoint answers {jobs: [{period, job_id}]}; deployments that only know a single period answer
// {job_id}, which is attributed to the first requested period.
func (c *JobClient) SubmitSnapshots(ctx context.Context, periods []string) ([]models.SnapshotJob, error) {
	body := map[string]any{"periods": periods}
	if len(periods) == 1 {
		body["period"] = periods[0]
	}

	resp, err := c.api.PostJSON(ctx, snapshotsPath, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		msg := resp.ErrorMessage()
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrSubmissionRejected, msg)
	}

	if jobs := gjson.GetBytes(resp.Body, "jobs"); jobs.IsArray() {
		var out []models.SnapshotJob
		for _, j := range jobs.Array() {
			id := firstString(j, "job_id", "task_id", "id")
			if id == "" {
				continue
			}
			out = append(out, models.SnapshotJob{Period: j.Get("period").String(), JobID: id})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: no job ids in response", shared.ErrSubmissionRejected)
		}
		return out, nil
	}

	sub := DecodeSubmission(resp)
	if !sub.Accepted {
		return nil, fmt.Errorf("%w: %s", shared.ErrSubmissionRejected, sub.ErrorMessage)
	}
	period := ""
	if len(periods) > 0 {
		period = periods[0]
	}
	return []models.SnapshotJob{{Period: period, JobID: sub.JobID}}, nil
}

// SubmitCustomSnapshot requests a snapshot for an arbitrary time range.
func (c *JobClient) SubmitCustomSnapshot(ctx context.Context, start, end time.Time) (poller.Submission, error) {
	resp, err := c.api.PostJSON(ctx, customSnapshotPath, map[string]string{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	})
	if err != nil {
		return poller.Submission{}, err
	}
	return DecodeSubmission(resp), nil
}

// CheckStatus fetches and normalises the status of jobID. It satisfies [poller.CheckFunc].
func (c *JobClient) CheckStatus(ctx context.Context, jobID string) (poller.Status, error) {
	resp, err := c.api.Get(ctx, c.StatusPath(jobID), nil)
	if err != nil {
		return poller.Status{}, err
	}
	if !resp.OK() {
		return poller.Status{}, resp.Err()
	}
	if !resp.IsJSON {
		return poller.Status{}, fmt.Errorf("%w: status response is not JSON", shared.ErrUnexpectedResponse)
	}
	return DecodeStatus(resp.Body), nil
}

// DecodeSubmission reads a submission response: accepted only for HTTP 202 with a job_id (or task_id).
func DecodeSubmission(resp *APIResponse) poller.Submission {
	if !resp.IsJSON {
		return poller.Submission{ErrorMessage: fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)}
	}

	id := firstString(gjson.ParseBytes(resp.Body), "job_id", "task_id")
	if resp.StatusCode != http.StatusAccepted || id == "" {
		return poller.Submission{ErrorMessage: resp.ErrorMessage()}
	}
	return poller.Submission{Accepted: true, JobID: id}
}

// DecodeStatus normalises a job-status or task-status body.
func DecodeStatus(body []byte) poller.Status {
	doc := gjson.ParseBytes(body)

	raw := firstString(doc, "status", "state")
	st := poller.Status{State: models.ParseJobStatus(raw), Raw: raw}

	switch p := doc.Get("progress"); {
	case p.IsObject():
		if pct := p.Get("progress_pct"); pct.Exists() {
			st.Progress = clampPercent(pct.Float())
		}
	case p.Type == gjson.Number:
		st.Progress = clampPercent(p.Float())
	default:
		if pct := doc.Get("progress_pct"); pct.Type == gjson.Number {
			st.Progress = clampPercent(pct.Float())
		}
	}

	if r := doc.Get("result"); r.IsObject() {
		var result models.JobResult
		if err := json.Unmarshal([]byte(r.Raw), &result); err == nil {
			st.Result = result
		}
	} else if r.Exists() && r.Type != gjson.Null {
		st.Result = models.JobResult{"value": r.Value()}
	}

	st.Error = firstString(doc, "error", "exc_info")
	if st.Error == "" && st.State == models.JobFailed {
		st.Error = firstString(doc, "result.message", "result.error", "message")
	}
	st.Error = lastLine(st.Error)

	return st
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func clampPercent(f float64) *int {
	pct := int(f)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &pct
}

// lastLine trims a Python traceback down to its final line.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
