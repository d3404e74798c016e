package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"schoolreport/internal/metrics"
	"schoolreport/internal/schoolapi"
)

const (
	// DefaultPageSize is the page size requested from the student list endpoint.
	DefaultPageSize = 100
	// DefaultMaxPages is the safety cap on pages fetched per run.
	DefaultMaxPages = 20
)

// FetchStats describes one paginated fetch.
type FetchStats struct {
	Pages     int
	Records   int
	Truncated bool
}

// Fetcher pages through the student list endpoint.
type Fetcher struct {
	src      Source
	pageSize int
	maxPages int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewFetcher creates a fetcher. Non-positive sizes fall back to the defaults.
func NewFetcher(src Source, pageSize, maxPages int, log *zap.Logger, m *metrics.Metrics) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{src: src, pageSize: pageSize, maxPages: maxPages, log: log, metrics: m}
}

// FetchAll requests pages 1..N until a page is short, the reported total or
// page count is reached, or the safety cap is hit. The first failing page
// aborts the fetch.
func (f *Fetcher) FetchAll(ctx context.Context, q schoolapi.StudentQuery) ([]schoolapi.Student, FetchStats, error) {
	var (
		all   []schoolapi.Student
		stats FetchStats
	)
	q.Limit = f.pageSize
	for page := 1; page <= f.maxPages; page++ {
		q.Page = page
		res, err := f.src.ListStudents(ctx, q)
		if err != nil {
			return nil, stats, fmt.Errorf("fetch students page %d: %w", page, err)
		}
		stats.Pages++
		f.metrics.PageFetched()
		all = append(all, res.Data...)
		stats.Records = len(all)

		if len(res.Data) < f.pageSize ||
			(res.Total > 0 && len(all) >= res.Total) ||
			(res.TotalPages > 0 && page >= res.TotalPages) {
			return all, stats, nil
		}
	}

	stats.Truncated = true
	f.metrics.Truncated()
	f.log.Warn("student fetch truncated at page cap",
		zap.Int("max_pages", f.maxPages),
		zap.Int("page_size", f.pageSize),
		zap.Int("records", len(all)),
		zap.String("school_id", q.SchoolID),
		zap.String("class_id", q.ClassID),
	)
	return all, stats, nil
}
