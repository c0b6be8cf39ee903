package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

type job struct {
	id      string
	kind    models.JobKind
	period  string
	start   string
	end     string
	polls   int
	done    bool
	failMsg string
	records []models.StreamRecord
	parsed  error
	result  models.JobResult
}

// advanceLocked moves j one step towards completion.
func (s *Server) advanceLocked(j *job) {
	if j.done {
		return
	}
	j.polls++
	if j.polls < s.opts.StepsToFinish {
		return
	}

	j.done = true
	if j.failMsg != "" {
		return
	}

	switch j.kind {
	case models.KindUpload:
		if j.parsed != nil {
			j.result = models.JobResult{"status": "error", "message": "Uploaded file is not a list"}
			return
		}
		inserted := s.importLocked(j.records)
		j.result = models.JobResult{"status": "success", "inserted": inserted, "total": len(j.records)}
	default:
		snap := s.buildSnapshotLocked(j.period, j.start, j.end)
		if j.period != "custom" {
			s.snapshots[j.period] = snap
		}
		j.result = models.JobResult{"status": "success", "period": j.period, "snapshot_id": snap.ID, "total_streams": snap.TotalStreams}
	}
}

func (s *Server) buildSnapshotLocked(period, start, end string) *models.Snapshot {
	snap := &models.Snapshot{
		ID:          len(s.snapshots) + 1,
		Period:      period,
		Start:       start,
		End:         end,
		GeneratedAt: now(),
	}
	for _, song := range s.songs {
		snap.TotalStreams += song.PlayCount
		snap.TotalMs += song.MsPlayed
	}
	snap.TopSongs = s.sortedSongsLocked()
	if len(snap.TopSongs) > 10 {
		snap.TopSongs = snap.TopSongs[:10]
	}
	snap.TopArtists = s.sortedArtistsLocked()
	if len(snap.TopArtists) > 10 {
		snap.TopArtists = snap.TopArtists[:10]
	}
	return snap
}

func (s *Server) newJobLocked(kind models.JobKind, period string) *job {
	j := &job{id: shared.GenerateID(), kind: kind, period: period, failMsg: s.failNext}
	s.failNext = ""
	s.jobs[j.id] = j
	s.logger.Debug("job created", "job", j.id, "kind", kind, "period", period)
	return j
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
		return
	}
	defer file.Close()

	if header.Filename == "" || !strings.EqualFold(filepath.Ext(header.Filename), ".json") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid file"})
		return
	}

	var records []models.StreamRecord
	parseErr := json.NewDecoder(file).Decode(&records)

	s.mu.Lock()
	j := s.newJobLocked(models.KindUpload, "")
	j.records = records
	j.parsed = parseErr
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": j.id})
}

func (s *Server) generateSnapshots(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Period  string   `json:"period"`
		Periods []string `json:"periods"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	batch := len(body.Periods) > 0
	periods := body.Periods
	if !batch {
		if body.Period == "" {
			body.Period = "day"
		}
		periods = []string{body.Period}
	}
	for _, p := range periods {
		if !models.IsSnapshotPeriod(p) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid period type"})
			return
		}
	}

	s.mu.Lock()
	jobs := make([]models.SnapshotJob, 0, len(periods))
	for _, p := range periods {
		kind := models.KindSnapshot
		if p == "lifetime" {
			kind = models.KindLifetime
		}
		j := s.newJobLocked(kind, p)
		jobs = append(jobs, models.SnapshotJob{Period: p, JobID: j.id})
	}
	s.mu.Unlock()

	if !batch {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "job_id": jobs[0].JobID})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "jobs": jobs})
}

func (s *Server) generateCustom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Start == "" || body.End == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing 'start' or 'end' timestamp"})
		return
	}
	for _, v := range []string{body.Start, body.End} {
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid datetime format: %v", err)})
			return
		}
	}

	s.mu.Lock()
	j := s.newJobLocked(models.KindSnapshot, "custom")
	j.start, j.end = body.Start, body.End
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "job_id": j.id})
}

// jobStatus answers in the job-queue vocabulary. Unknown ids report failed with status 200.
func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "error": "No such job: " + id})
		return
	}
	s.advanceLocked(j)

	body := map[string]any{"job_id": j.id, "result": nil, "error": nil}
	switch {
	case j.done && j.failMsg != "":
		body["status"] = "failed"
		body["error"] = "Traceback (most recent call last):\n  File \"tasks.py\", line 1, in job\nRuntimeError: " + j.failMsg
	case j.done:
		body["status"] = "finished"
		body["result"] = j.result
	case j.polls <= 1:
		body["status"] = "queued"
	default:
		body["status"] = "started"
		body["progress"] = s.percent(j)
	}
	writeJSON(w, http.StatusOK, body)
}

// taskStatus answers in the task-queue vocabulary.
func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown task"})
		return
	}
	s.advanceLocked(j)

	body := map[string]any{"task_id": j.id}
	switch {
	case j.done && j.failMsg != "":
		body["status"] = "FAILURE"
		body["result"] = map[string]string{"message": j.failMsg}
	case j.done:
		body["status"] = "SUCCESS"
		body["result"] = j.result
	case j.polls <= 1:
		body["status"] = "PENDING"
	default:
		body["status"] = "PROGRESS"
		body["progress"] = map[string]any{"progress_pct": s.percent(j), "total": len(j.records)}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) percent(j *job) int {
	return j.polls * 100 / s.opts.StepsToFinish
}

// latestSnapshot answers 202 while a lifetime job is unfinished. Each call advances such jobs by one step.
func (s *Server) latestSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := false
	for _, j := range s.jobs {
		if j.kind == models.KindLifetime && !j.done {
			s.advanceLocked(j)
			pending = pending || !j.done
		}
	}
	if pending {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
		return
	}

	snap, ok := s.snapshots["lifetime"]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No lifetime snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
