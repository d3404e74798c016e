// Package report defines the report catalogue. Each report is a
// configuration: the waves it needs, a filter, a pure transformer from
// enriched records to rows, and the workbook layout.
package report

import (
	"errors"
	"sort"

	"schoolreport/internal/pipeline"
	"schoolreport/internal/sheet"
)

// ErrUnknownReport is returned for report ids not in the catalogue.
var ErrUnknownReport = errors.New("unknown report")

type (
	Column = sheet.Column
	Row    = sheet.Row
)

// Transformer maps enriched records to rows. It must not mutate its input
// and must return exactly one row per record.
type Transformer func(recs []pipeline.Record, p Params) []Row

// Definition configures one report type.
type Definition struct {
	ID      string
	Number  int
	Title   string
	Columns []Column

	Waves  []pipeline.WaveSpec
	Filter func(pipeline.Record) bool
	// Server-side hints; the filter still re-checks every record.
	Accessibility bool
	EthnicGroup   bool

	Transform   Transformer
	Layout      sheet.Layout
	EmphasisKey string
	Signature   sheet.Signature
}

// Summary is the public description of a report.
type Summary struct {
	ID      string   `json:"id"`
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Columns []Column `json:"columns"`
}

var registry = map[string]*Definition{}

func register(d *Definition) {
	if _, dup := registry[d.ID]; dup {
		panic("report: duplicate id " + d.ID)
	}
	registry[d.ID] = d
}

// Lookup returns the definition of id.
func Lookup(id string) (*Definition, error) {
	d, ok := registry[id]
	if !ok {
		return nil, ErrUnknownReport
	}
	return d, nil
}

// All returns every definition ordered by report number.
func All() []*Definition {
	out := make([]*Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Catalogue lists the reports for API clients.
func Catalogue() []Summary {
	defs := All()
	out := make([]Summary, len(defs))
	for i, d := range defs {
		out[i] = Summary{ID: d.ID, Number: d.Number, Title: d.Title, Columns: d.Columns}
	}
	return out
}
