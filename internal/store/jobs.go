package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alnah/go-narrate/internal/model"
)

const (
	jobColumns = `id, url, title, status, message, result_entry_id, created_at, updated_at`

	insertJobSQL = `INSERT INTO generation_jobs (url, title, status)
		VALUES ($1, $2, 'pending')
		RETURNING ` + jobColumns

	getJobSQL = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	listActiveJobsSQL = `SELECT ` + jobColumns + ` FROM generation_jobs
		WHERE url = $1 AND status NOT IN ('done', 'error')
		ORDER BY created_at DESC, id DESC`

	// Terminal jobs never change again.
	transitionJobSQL = `UPDATE generation_jobs
		SET status = $2, message = $3, result_entry_id = COALESCE($4, result_entry_id), updated_at = now()
		WHERE id = $1 AND status NOT IN ('done', 'error')`

	sweepStaleJobsSQL = `UPDATE generation_jobs
		SET status = 'error', message = $2, updated_at = now()
		WHERE status NOT IN ('done', 'error') AND created_at < $1`
)

// JobRepository stores generation jobs.
type JobRepository struct {
	pool Pool
}

// NewJobRepository creates a JobRepository.
func NewJobRepository(pool Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Create inserts a pending job for url.
func (r *JobRepository) Create(ctx context.Context, url, title string) (*model.Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, insertJobSQL, url, title))
	if err != nil {
		return nil, mapError(err, "create job")
	}
	return j, nil
}

// Get returns job id, or ErrNotFound.
func (r *JobRepository) Get(ctx context.Context, id int64) (*model.Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, getJobSQL, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get job %d", id))
	}
	return j, nil
}

// ListActive returns the non-terminal jobs for url, newest first.
func (r *JobRepository) ListActive(ctx context.Context, url string) ([]*model.Job, error) {
	rows, err := r.pool.Query(ctx, listActiveJobsSQL, url)
	if err != nil {
		return nil, mapError(err, "list jobs")
	}
	defer rows.Close()

	out := []*model.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, mapError(err, "scan job")
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list jobs")
	}
	return out, nil
}

// Transition moves job id to status. resultID, when non-nil, records the
// generation the job produced. Returns ErrJobFinished if the job is terminal
// or does not exist.
func (r *JobRepository) Transition(ctx context.Context, id int64, status model.JobStatus, message string, resultID *int64) error {
	tag, err := r.pool.Exec(ctx, transitionJobSQL, id, string(status), message, resultID)
	if err != nil {
		return mapError(err, fmt.Sprintf("update job %d", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %d to %s: %w", id, status, ErrJobFinished)
	}
	return nil
}

// SweepStale fails every non-terminal job created before cutoff and returns
// how many were swept.
func (r *JobRepository) SweepStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	tag, err := r.pool.Exec(ctx, sweepStaleJobsSQL, cutoff, message)
	if err != nil {
		return 0, mapError(err, "sweep stale jobs")
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
	)
	if err := row.Scan(&j.ID, &j.URL, &j.Title, &status, &j.Message, &j.ResultEntryID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}
