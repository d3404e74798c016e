package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"schoolreport/internal/metrics"
	"schoolreport/internal/pipeline"
	"schoolreport/internal/sheet"
)

// Artifact is a generated report file with the run statistics.
type Artifact struct {
	Report      string
	Filename    string
	ContentType string
	Data        []byte

	Rows      int
	Degraded  int
	Skipped   int
	Filtered  int
	Truncated bool
}

// Generator runs fetch, enrich, filter, transform and write for one report.
type Generator struct {
	pipe    *pipeline.Pipeline
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewGenerator(pipe *pipeline.Pipeline, log *zap.Logger, m *metrics.Metrics) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{pipe: pipe, log: log.Named("report"), metrics: m, now: time.Now}
}

// Generate builds the artifact of report id.
func (g *Generator) Generate(ctx context.Context, id string, params Params) (art *Artifact, err error) {
	def, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	now := g.now()
	params = params.WithDefaults(now)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	defer func(start time.Time) {
		g.metrics.ObserveReport(def.ID, err, time.Since(start))
	}(now)

	waves := make([]pipeline.Wave, 0, len(def.Waves))
	for _, spec := range def.Waves {
		w, err := g.pipe.Wave(spec, params.scope())
		if err != nil {
			return nil, err
		}
		waves = append(waves, w)
	}
	q := params.query()
	q.HasAccessibility = def.Accessibility
	q.IsEthnicGroup = def.EthnicGroup

	res, err := g.pipe.FetchEnrichedStudents(ctx, pipeline.Spec{Query: q, Waves: waves, Filter: def.Filter})
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", def.ID, err)
	}
	rows := def.Transform(res.Records, params)

	var buf bytes.Buffer
	switch params.Format {
	case FormatCSV:
		err = sheet.WriteCSV(&buf, def.Columns, rows)
	default:
		err = sheet.WriteXLSX(&buf, sheet.Config{
			SchoolName:  params.SchoolName,
			Title:       def.Title,
			Period:      params.Period(),
			Columns:     def.Columns,
			Rows:        rows,
			Layout:      def.Layout,
			EmphasisKey: def.EmphasisKey,
			Signature:   def.Signature,
			Date:        now,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", def.ID, err)
	}

	name := def.Title
	if params.ClassName != "" {
		name += " " + params.ClassName
	}
	art = &Artifact{
		Report:      def.ID,
		Filename:    sheet.Filename(name, string(params.Format), now),
		ContentType: params.Format.ContentType(),
		Data:        buf.Bytes(),
		Rows:        len(rows),
		Degraded:    res.Degraded,
		Skipped:     res.Skipped,
		Filtered:    res.Filtered,
		Truncated:   res.Truncated(),
	}
	g.log.Info("report generated",
		zap.String("report", def.ID),
		zap.String("school_id", params.SchoolID),
		zap.String("format", string(params.Format)),
		zap.Int("rows", art.Rows),
		zap.Int("degraded", art.Degraded),
		zap.Int("skipped", art.Skipped),
		zap.Bool("truncated", art.Truncated),
		zap.Duration("took", time.Since(now)),
	)
	return art, nil
}
