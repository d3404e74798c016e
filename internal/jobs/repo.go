package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolreport/internal/store"
)

// Repository persists report jobs.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const jobColumns = `id, report, params, status, requested_by, artifact_url, filename, error,
	rows_count, degraded, skipped, truncated, created_at, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (Job, error) {
	var (
		job       Job
		params    string
		started   sql.NullTime
		finished  sql.NullTime
		truncated bool
	)
	err := s.Scan(&job.ID, &job.Report, &params, &job.Status, &job.RequestedBy, &job.ArtifactURL,
		&job.Filename, &job.Error, &job.Rows, &job.Degraded, &job.Skipped, &truncated,
		&job.CreatedAt, &started, &finished)
	if err != nil {
		return Job{}, err
	}
	job.Truncated = truncated
	if started.Valid {
		t := started.Time.UTC()
		job.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time.UTC()
		job.FinishedAt = &t
	}
	job.CreatedAt = job.CreatedAt.UTC()
	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return Job{}, fmt.Errorf("decode params of job %s: %w", job.ID, err)
	}
	return job, nil
}

// Insert writes a new job. Empty id, status and creation time are filled in.
func (r *Repository) Insert(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return Job{}, err
	}
	_, err = r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO report_jobs (id, report, params, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`), job.ID, job.Report, string(params), job.Status, job.RequestedBy, job.CreatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Get returns a single job by id.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT `+jobColumns+` FROM report_jobs WHERE id = $1`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return job, err
}

// MarkRunning moves a pending job to running. It returns ErrNotPending when
// another worker already took it.
func (r *Repository) MarkRunning(ctx context.Context, id string) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE report_jobs SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`), StatusRunning, time.Now().UTC(), id, StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotPending
	}
	return nil
}

// MarkDone stores the artifact location and run counts.
func (r *Repository) MarkDone(ctx context.Context, id string, out Outcome) error {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE report_jobs
		SET status = $1, artifact_url = $2, filename = $3, rows_count = $4,
			degraded = $5, skipped = $6, truncated = $7, finished_at = $8
		WHERE id = $9
	`), StatusDone, out.ArtifactURL, out.Filename, out.Rows, out.Degraded, out.Skipped, out.Truncated,
		time.Now().UTC(), id)
	return err
}

// MarkFailed records the failure message.
func (r *Repository) MarkFailed(ctx context.Context, id, msg string) error {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE report_jobs SET status = $1, error = $2, finished_at = $3 WHERE id = $4
	`), StatusFailed, msg, time.Now().UTC(), id)
	return err
}

// FailStale marks every pending or running job failed with msg and returns
// how many it touched. It is meant for startup when the queue that held those
// jobs did not survive the restart.
func (r *Repository) FailStale(ctx context.Context, msg string) (int64, error) {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE report_jobs SET status = $1, error = $2, finished_at = $3
		WHERE status IN ($4, $5)
	`), StatusFailed, msg, time.Now().UTC(), StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// List returns jobs newest first, optionally filtered by status and requester.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Job, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + jobColumns + ` FROM report_jobs`
	var (
		args    []any
		clauses []string
	)
	if f.Status != "" {
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)+1))
		args = append(args, f.Status)
	}
	if f.RequestedBy != "" {
		clauses = append(clauses, "requested_by = $"+strconv.Itoa(len(args)+1))
		args = append(args, f.RequestedBy)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, job)
	}
	return res, rows.Err()
}
