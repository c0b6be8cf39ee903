package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

// JobRecord is a persisted job with its local bookkeeping.
type JobRecord struct {
	LocalID  string
	Sequence int
	Job      models.Job
}

// JobRepository stores the history of jobs this client has submitted or watched.
//
// Rows are keyed by the remote job id: recording the same job again updates its row.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, sequence, remote_id, kind, label, status, progress, result, error, attempts, created_at, updated_at`

// Record inserts job, or updates the existing row for the same remote id.
func (r *JobRepository) Record(ctx context.Context, job models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	existing, err := r.Get(ctx, job.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		_, err = r.Create(ctx, job)
		return err
	case err != nil:
		return err
	}

	if job.Kind == "" {
		job.Kind = existing.Job.Kind
	}
	if job.Label == "" {
		job.Label = existing.Job.Label
	}
	return r.update(ctx, existing.LocalID, job)
}

// Create inserts a new job row with a generated local ID and sequence.
func (r *JobRepository) Create(ctx context.Context, job models.Job) (*JobRecord, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	result, err := encodeResult(job.Result)
	if err != nil {
		return nil, err
	}

	id := shared.GenerateID()
	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		id, sequence, job.ID, string(job.Kind), job.Label, string(job.Status),
		progressValue(job.Progress), result, job.ErrorMessage, job.Attempts,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	return &JobRecord{LocalID: id, Sequence: sequence, Job: job}, nil
}

func (r *JobRepository) update(ctx context.Context, localID string, job models.Job) error {
	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET kind = ?, label = ?, status = ?, progress = ?, result = ?, error = ?, attempts = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		string(job.Kind), job.Label, string(job.Status), progressValue(job.Progress), result,
		job.ErrorMessage, job.Attempts, time.Now(), localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: job %s", shared.ErrNotFound, job.ID)
	}
	return nil
}

// Get retrieves the most recent row for a remote job id.
func (r *JobRepository) Get(ctx context.Context, remoteID string) (*JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE remote_id = ? ORDER BY sequence DESC LIMIT 1`
	record, err := scanJob(r.db.QueryRowContext(ctx, query, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", shared.ErrNotFound, remoteID)
	}
	return record, err
}

// List returns jobs newest first. Supported criteria: "kind", "status" (strings) and "limit" (int).
func (r *JobRepository) List(ctx context.Context, criteria map[string]any) ([]JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Delete removes every row for a remote job id.
func (r *JobRepository) Delete(ctx context.Context, remoteID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE remote_id = ?", remoteID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: job %s", shared.ErrNotFound, remoteID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanJob scans a single row from [sql.Row] or [sql.Rows] into a [JobRecord]
func scanJob(row scanner) (*JobRecord, error) {
	var (
		rec      JobRecord
		kind     string
		status   string
		progress sql.NullInt64
		result   sql.NullString
	)

	err := row.Scan(
		&rec.LocalID, &rec.Sequence, &rec.Job.ID, &kind, &rec.Job.Label, &status,
		&progress, &result, &rec.Job.ErrorMessage, &rec.Job.Attempts,
		&rec.Job.CreatedAt, &rec.Job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	rec.Job.Kind = models.JobKind(kind)
	rec.Job.Status = models.JobStatus(status)
	if progress.Valid {
		p := int(progress.Int64)
		rec.Job.Progress = &p
	}
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &rec.Job.Result); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
	}

	return &rec, nil
}

func encodeResult(r models.JobResult) (any, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job result: %w", err)
	}
	return string(data), nil
}

func progressValue(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
