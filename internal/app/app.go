// Package app builds the components shared by the binaries from config.
package app

import (
	"go.uber.org/zap"

	"schoolreport/internal/artifact"
	"schoolreport/internal/config"
	"schoolreport/internal/metrics"
	"schoolreport/internal/pipeline"
	"schoolreport/internal/queue"
	"schoolreport/internal/report"
	"schoolreport/internal/schoolapi"
	"schoolreport/internal/store"
)

// NewGenerator wires the school API client, the pipeline and the report
// generator.
func NewGenerator(cfg config.App, log *zap.Logger, m *metrics.Metrics) *report.Generator {
	client := schoolapi.New(cfg.SchoolAPIURL, cfg.SchoolAPIToken, cfg.SchoolAPITimeout, m)
	pipe := pipeline.New(client, pipeline.Options{
		PageSize:    cfg.PageSize,
		MaxPages:    cfg.MaxPages,
		Concurrency: cfg.EnrichConcurrency,
	}, log, m)
	return report.NewGenerator(pipe, log, m)
}

// NewArtifactStore uploads to Cloudinary when CLOUDINARY_URL is set and
// writes to ARTIFACT_DIR otherwise.
func NewArtifactStore(cfg config.App, log *zap.Logger) (artifact.Store, error) {
	if cfg.CloudinaryURL != "" {
		c, err := artifact.NewCloudinary(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, err
		}
		log.Info("artifacts go to cloudinary", zap.String("cloud", c.CloudName), zap.String("folder", c.Folder))
		return c, nil
	}
	l, err := artifact.NewLocal(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	log.Info("artifacts go to local dir", zap.String("dir", l.Dir))
	return l, nil
}

// NewQueue returns the in-memory queue for QUEUE_BACKEND=memory and the
// Redis list otherwise.
func NewQueue(cfg config.App, rdb *store.Redis, log *zap.Logger) queue.Queue {
	if cfg.QueueBackend == "memory" {
		return queue.NewInMemory(64)
	}
	return queue.NewRedisQueue(rdb.Client, cfg.QueueKey, log)
}
