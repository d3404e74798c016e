// Package jobs runs report generation asynchronously: the API submits a
// job, the worker generates the artifact and records the outcome.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"schoolreport/internal/queue"
	"schoolreport/internal/report"
)

// MessageType tags queue messages carrying a job id.
const MessageType = "report.generate"

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrNotPending is returned when a job was already picked up.
	ErrNotPending = errors.New("job is not pending")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a persisted report generation request.
type Job struct {
	ID          string        `json:"id"`
	Report      string        `json:"report"`
	Params      report.Params `json:"params"`
	Status      Status        `json:"status"`
	RequestedBy string        `json:"requested_by,omitempty"`
	ArtifactURL string        `json:"artifact_url,omitempty"`
	Filename    string        `json:"filename,omitempty"`
	Error       string        `json:"error,omitempty"`
	Rows        int           `json:"rows"`
	Degraded    int           `json:"degraded"`
	Skipped     int           `json:"skipped"`
	Truncated   bool          `json:"truncated"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

// Outcome is what a finished job records.
type Outcome struct {
	ArtifactURL string
	Filename    string
	Rows        int
	Degraded    int
	Skipped     int
	Truncated   bool
}

// ListFilter narrows List.
type ListFilter struct {
	Status      Status
	RequestedBy string
	Limit       int
	Offset      int
}

// Repo is the persistence the service and worker need.
type Repo interface {
	Insert(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string, out Outcome) error
	MarkFailed(ctx context.Context, id, msg string) error
	List(ctx context.Context, f ListFilter) ([]Job, error)
}

// Service accepts job submissions.
type Service struct {
	repo  Repo
	queue queue.Queue
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a service backed by a repository and a queue.
func NewService(repo Repo, q queue.Queue, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, queue: q, log: log.Named("jobs"), now: time.Now}
}

// Submit validates the request, persists a pending job and publishes it.
func (s *Service) Submit(ctx context.Context, reportID string, params report.Params, requestedBy string) (Job, error) {
	if _, err := report.Lookup(reportID); err != nil {
		return Job{}, err
	}
	params = params.WithDefaults(s.now())
	if err := params.Validate(); err != nil {
		return Job{}, err
	}

	job, err := s.repo.Insert(ctx, Job{
		Report:      reportID,
		Params:      params,
		Status:      StatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return Job{}, err
	}

	if err := s.queue.Publish(ctx, queue.Message{Type: MessageType, Body: []byte(job.ID)}); err != nil {
		s.log.Error("queue publish failed", zap.String("job_id", job.ID), zap.Error(err))
		if mErr := s.repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "enqueue failed: "+err.Error()); mErr != nil {
			s.log.Error("mark job failed", zap.String("job_id", job.ID), zap.Error(mErr))
		}
		return Job{}, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	s.log.Info("job submitted", zap.String("job_id", job.ID), zap.String("report", reportID),
		zap.String("requested_by", requestedBy))
	return job, nil
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.repo.Get(ctx, id)
}

// List returns jobs newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Job, error) {
	return s.repo.List(ctx, f)
}
