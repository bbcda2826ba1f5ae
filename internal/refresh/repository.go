package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fortuna/almanac/internal/store"
)

const jobColumns = `job_id, job_type, season_year, period_ids,
	status, status_message, progress_current, progress_total,
	last_error, retry_count, created_at, updated_at, started_at, completed_at`

// Repository handles persistence for refresh jobs and events.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a new job row under a fresh id and returns the stored record.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	query := `
		INSERT INTO refresh_jobs (
			job_id, job_type, season_year, period_ids,
			status, status_message, progress_current, progress_total
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + jobColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		uuid.NewString(), job.JobType, job.SeasonYear, job.PeriodIDs,
		job.Status, job.StatusMessage, job.ProgressCurrent, job.ProgressTotal,
	)

	stored, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return stored, nil
}

// UpdateStatus updates status, message and optional error.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	query := `
		UPDATE refresh_jobs
		SET status = $2::varchar,
			status_message = $3,
			last_error = $4,
			updated_at = NOW(),
			completed_at = CASE WHEN $2::varchar IN ('completed','failed','cancelled') THEN NOW() ELSE completed_at END
		WHERE job_id = $1
	`

	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, string(status), message, errText); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// UpdateProgress updates the progress counters and message.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	query := `
		UPDATE refresh_jobs
		SET progress_current = $2,
			progress_total = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, current, total, message); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// AppendEvent stores a log entry for a job.
func (r *Repository) AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error {
	query := `
		INSERT INTO refresh_job_events (job_id, event_type, message, progress_current, progress_total)
		VALUES ($1,$2,$3,$4,$5)
	`

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, eventType, message, nullableInt(current), nullableInt(total)); err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// ResetStuckJobs moves running jobs back to queued (used during service restarts).
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE refresh_jobs
		SET status = 'queued',
			status_message = 'Reset after service restart',
			retry_count = retry_count + 1,
			updated_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning atomically claims the next queued job. It returns nil
// when the queue is empty.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	query := `
		WITH next_job AS (
			SELECT job_id
			FROM refresh_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE refresh_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE refresh_jobs.job_id = next_job.job_id
		RETURNING refresh_jobs.job_id, refresh_jobs.job_type, refresh_jobs.season_year,
			refresh_jobs.period_ids, refresh_jobs.status, refresh_jobs.status_message,
			refresh_jobs.progress_current, refresh_jobs.progress_total,
			refresh_jobs.last_error, refresh_jobs.retry_count,
			refresh_jobs.created_at, refresh_jobs.updated_at,
			refresh_jobs.started_at, refresh_jobs.completed_at
	`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the currently running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM refresh_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recent jobs, newest first.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM refresh_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	job := &Job{}
	err := scanner.Scan(
		&job.JobID,
		&job.JobType,
		&job.SeasonYear,
		&job.PeriodIDs,
		&job.Status,
		&job.StatusMessage,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&job.LastError,
		&job.RetryCount,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
