package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolreport/internal/metrics"
	"schoolreport/internal/schoolapi"
)

// DefaultConcurrency bounds the in-flight requests of one enrichment wave.
const DefaultConcurrency = 10

// Policy decides what a wave does with a record whose enrichment failed.
type Policy string

const (
	// Abort fails the whole run on the first item error.
	Abort Policy = "abort"
	// Degrade keeps the record in its pre-wave form.
	Degrade Policy = "degrade"
	// Skip drops the record from the collection.
	Skip Policy = "skip"
)

// Valid returns true when p is a supported policy.
func (p Policy) Valid() bool {
	switch p {
	case Abort, Degrade, Skip:
		return true
	default:
		return false
	}
}

// Record is one student assembled across enrichment waves.
type Record struct {
	Student    schoolapi.Student
	Parents    []schoolapi.Parent
	Attendance []schoolapi.AttendanceRecord
	BMI        []schoolapi.BMIRecord

	// Degraded lists the waves whose failure left this record un-enriched.
	Degraded []string
}

// Wave is one batch of per-record enrichment calls.
type Wave struct {
	Name   string
	Policy Policy
	Apply  func(ctx context.Context, rec Record) (Record, error)
	// Truncated, when set, reports after the wave whether a capped backend
	// call may have dropped rows.
	Truncated func() bool
}

// Enricher runs waves over a record collection with a bounded worker pool.
type Enricher struct {
	concurrency int
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// NewEnricher creates an enricher; concurrency <= 0 uses DefaultConcurrency.
func NewEnricher(concurrency int, log *zap.Logger, m *metrics.Metrics) *Enricher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{concurrency: concurrency, log: log, metrics: m}
}

// Run applies wave to every record. Output order matches input order minus
// skipped records. It returns the number of records skipped.
func (e *Enricher) Run(ctx context.Context, recs []Record, wave Wave) ([]Record, int, error) {
	policy := wave.Policy
	if !policy.Valid() {
		policy = Abort
	}

	out := make([]Record, len(recs))
	keep := make([]bool, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range recs {
		i := i
		g.Go(func() error {
			rec, err := wave.Apply(gctx, recs[i])
			if err == nil {
				out[i], keep[i] = rec, true
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			userID := recs[i].Student.UserID.String()
			e.metrics.ItemError(wave.Name, string(policy))
			switch policy {
			case Skip:
				e.log.Warn("enrichment failed, record skipped",
					zap.String("wave", wave.Name), zap.String("user_id", userID), zap.Error(err))
				return nil
			case Degrade:
				e.log.Warn("enrichment failed, record degraded",
					zap.String("wave", wave.Name), zap.String("user_id", userID), zap.Error(err))
				d := recs[i]
				d.Degraded = append(append([]string(nil), d.Degraded...), wave.Name)
				out[i], keep[i] = d, true
				return nil
			default:
				return fmt.Errorf("%s wave: user %s: %w", wave.Name, userID, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	kept := out[:0]
	skipped := 0
	for i, rec := range out {
		if keep[i] {
			kept = append(kept, rec)
		} else {
			skipped++
		}
	}
	return kept, skipped, nil
}
