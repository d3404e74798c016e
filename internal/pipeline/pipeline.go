// Package pipeline assembles enriched student collections from the school
// backend: paginated fetch, sequential enrichment waves with a bounded pool,
// then a client-side filter.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"schoolreport/internal/metrics"
	"schoolreport/internal/schoolapi"
)

// Source is the part of the school backend the pipeline reads from.
type Source interface {
	ListStudents(ctx context.Context, q schoolapi.StudentQuery) (schoolapi.StudentPage, error)
	GetUser(ctx context.Context, userID string) (schoolapi.Student, error)
	ParentsByStudent(ctx context.Context, studentID string) ([]schoolapi.Parent, error)
	GetParent(ctx context.Context, userID string) (schoolapi.Parent, error)
	ListAttendance(ctx context.Context, q schoolapi.AttendanceQuery) ([]schoolapi.AttendanceRecord, error)
	ListBMI(ctx context.Context, userID, year string, limit int) ([]schoolapi.BMIRecord, error)
}

// Options tunes a pipeline.
type Options struct {
	PageSize    int
	MaxPages    int
	Concurrency int
}

// Spec describes one run: what to list, how to enrich it and what to keep.
type Spec struct {
	Query  schoolapi.StudentQuery
	Waves  []Wave
	Filter func(Record) bool
}

// Result is the outcome of a run.
type Result struct {
	Records  []Record
	Fetch    FetchStats
	Degraded int // records that kept a pre-wave form in at least one wave
	Skipped  int // records dropped by skip-policy waves
	Filtered int // records removed by the filter
	// Waves that hit a backend cap and may be missing rows.
	TruncatedWaves []string
}

// Truncated reports whether any part of the run hit a backend cap.
func (r Result) Truncated() bool { return r.Fetch.Truncated || len(r.TruncatedWaves) > 0 }

// Pipeline runs fetch, enrich and filter.
type Pipeline struct {
	src      Source
	fetcher  *Fetcher
	enricher *Enricher
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a pipeline over src.
func New(src Source, opts Options, log *zap.Logger, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("pipeline")
	return &Pipeline{
		src:      src,
		fetcher:  NewFetcher(src, opts.PageSize, opts.MaxPages, log, m),
		enricher: NewEnricher(opts.Concurrency, log, m),
		log:      log,
		metrics:  m,
	}
}

// FetchEnrichedStudents fetches every student matching spec.Query, runs the
// waves in order and applies spec.Filter to the enriched records.
func (p *Pipeline) FetchEnrichedStudents(ctx context.Context, spec Spec) (Result, error) {
	var res Result

	students, stats, err := p.fetcher.FetchAll(ctx, spec.Query)
	if err != nil {
		return res, err
	}
	res.Fetch = stats

	recs := make([]Record, len(students))
	for i, s := range students {
		recs[i] = Record{Student: s}
	}

	for _, w := range spec.Waves {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("pipeline cancelled before %s wave: %w", w.Name, err)
		}
		var skipped int
		recs, skipped, err = p.enricher.Run(ctx, recs, w)
		if err != nil {
			return res, err
		}
		res.Skipped += skipped
		if w.Truncated != nil && w.Truncated() {
			res.TruncatedWaves = append(res.TruncatedWaves, w.Name)
		}
		p.log.Debug("wave finished", zap.String("wave", w.Name), zap.Int("records", len(recs)), zap.Int("skipped", skipped))
	}

	if spec.Filter != nil {
		kept := recs[:0]
		for _, r := range recs {
			if spec.Filter(r) {
				kept = append(kept, r)
			}
		}
		res.Filtered = len(recs) - len(kept)
		recs = kept
	}

	for _, r := range recs {
		if len(r.Degraded) > 0 {
			res.Degraded++
		}
	}
	res.Records = recs
	return res, nil
}
