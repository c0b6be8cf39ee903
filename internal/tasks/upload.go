package tasks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/poller"
	"github.com/desertthunder/yomi/internal/shared"
)

// UploadResult is the outcome of [JobEngine.Upload].
type UploadResult struct {
	Job     models.Job
	Summary models.UploadSummary
	Size    int64
}

// ValidateUpload checks that path is a Spotify streaming history export: an existing .json file whose content
// sniffs as JSON and holds a top-level array whose first element is a stream record. It returns the file size.
func ValidateUpload(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidInput, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return 0, fmt.Errorf("%w: %s is not a .json file", shared.ErrInvalidInput, filepath.Base(path))
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	// Large exports are truncated by the sniffer and may detect as plain text.
	if !mtype.Is("application/json") && !mtype.Is("text/plain") {
		return 0, fmt.Errorf("%w: %s is %s, not JSON", shared.ErrInvalidInput, filepath.Base(path), mtype.String())
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := checkStreamHistory(f); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// checkStreamHistory reads only as far as the first record.
func checkStreamHistory(r io.Reader) error {
	dec := json.NewDecoder(bufio.NewReader(r))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", shared.ErrInvalidInput, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("%w: expected a top-level JSON array", shared.ErrInvalidInput)
	}
	if !dec.More() {
		return fmt.Errorf("%w: export contains no records", shared.ErrInvalidInput)
	}

	var first models.StreamRecord
	if err := dec.Decode(&first); err != nil {
		return fmt.Errorf("%w: invalid record: %v", shared.ErrInvalidInput, err)
	}
	if first.Timestamp == "" {
		return fmt.Errorf("%w: records do not look like Spotify streaming history (missing ts)", shared.ErrInvalidInput)
	}
	return nil
}

// Upload validates, uploads and polls a streaming history export.
//
// A job that finishes with an error summary is reported as [shared.ErrJobFailed] alongside the result.
func (e *JobEngine) Upload(ctx context.Context, path string, progress chan<- ProgressUpdate) (*UploadResult, error) {
	sendProgress(progress, validateFileUpdate(path))
	size, err := ValidateUpload(path)
	if err != nil {
		return nil, err
	}

	p := e.newPoller(e.api.CheckStatus, models.KindUpload, filepath.Base(path), progress)
	job, err := e.track(ctx, p, func(ctx context.Context) (poller.Submission, error) {
		f, err := os.Open(path)
		if err != nil {
			return poller.Submission{}, err
		}
		defer f.Close()

		w := &progressWriter{total: size, progress: progress}
		return e.api.SubmitUpload(ctx, filepath.Base(path), f, w)
	})

	result := &UploadResult{Job: job, Size: size}
	if err != nil {
		return result, err
	}

	result.Summary = models.UploadSummaryFrom(job.Result)
	if result.Summary.Status == "error" {
		msg := result.Summary.Message
		if msg == "" {
			msg = "upload failed"
		}
		return result, fmt.Errorf("%w: %s", shared.ErrJobFailed, msg)
	}
	return result, nil
}

// progressWriter reports upload progress for every chunk written to it.
type progressWriter struct {
	total    int64
	sent     atomic.Int64
	progress chan<- ProgressUpdate
}

func (w *progressWriter) Write(b []byte) (int, error) {
	sent := w.sent.Add(int64(len(b)))
	total := w.total
	if sent > total {
		total = sent
	}
	sendProgress(w.progress, uploadBytesUpdate(sent, total))
	return len(b), nil
}
