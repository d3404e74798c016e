package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"schoolreport/internal/artifact"
	"schoolreport/internal/metrics"
	"schoolreport/internal/queue"
	"schoolreport/internal/report"
)

// Generator produces a report artifact.
type Generator interface {
	Generate(ctx context.Context, id string, params report.Params) (*report.Artifact, error)
}

// Worker consumes job messages and generates the artifacts.
type Worker struct {
	repo    Repo
	gen     Generator
	store   artifact.Store
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewWorker(repo Repo, gen Generator, store artifact.Store, log *zap.Logger, m *metrics.Metrics, timeout time.Duration) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Worker{repo: repo, gen: gen, store: store, log: log.Named("worker"), metrics: m, timeout: timeout}
}

// Run processes messages until ctx ends or the queue closes.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("worker started, waiting for jobs")
	for msg := range messages {
		if msg.Type != MessageType {
			w.log.Warn("ignoring message", zap.String("type", msg.Type))
			continue
		}
		if err := w.Process(ctx, string(msg.Body)); err != nil && !errors.Is(err, ErrNotPending) {
			w.log.Error("job failed", zap.String("job_id", string(msg.Body)), zap.Error(err))
		}
	}
	w.log.Info("worker stopped")
	return ctx.Err()
}

// Process generates one job. Jobs that are no longer pending are left alone
// so redelivered messages are harmless.
func (w *Worker) Process(ctx context.Context, id string) error {
	job, err := w.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := w.repo.MarkRunning(ctx, id); err != nil {
		if errors.Is(err, ErrNotPending) {
			w.log.Debug("job already taken", zap.String("job_id", id), zap.String("status", string(job.Status)))
		}
		return err
	}
	log := w.log.With(zap.String("job_id", id), zap.String("report", job.Report))
	log.Info("processing job")

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	art, err := w.gen.Generate(runCtx, job.Report, job.Params)
	if err == nil {
		var url string
		url, err = w.store.Save(runCtx, id+"_"+art.Filename, art.ContentType, art.Data)
		if err == nil {
			err = w.repo.MarkDone(context.WithoutCancel(ctx), id, Outcome{
				ArtifactURL: url,
				Filename:    art.Filename,
				Rows:        art.Rows,
				Degraded:    art.Degraded,
				Skipped:     art.Skipped,
				Truncated:   art.Truncated,
			})
			if err == nil {
				w.metrics.JobFinished(string(StatusDone))
				log.Info("job done", zap.String("artifact", url), zap.Int("rows", art.Rows))
				return nil
			}
		}
	}

	w.metrics.JobFinished(string(StatusFailed))
	if mErr := w.repo.MarkFailed(context.WithoutCancel(ctx), id, err.Error()); mErr != nil {
		log.Error("mark job failed", zap.Error(mErr))
	}
	return err
}
