// Package sheet writes report rows as a Khmer letterhead workbook or a CSV file.
package sheet

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"schoolreport/internal/locale"
)

// Column is one report column. Columns sharing a non-empty Group are placed
// under a merged group header.
type Column struct {
	Key    string  `json:"key"`
	Header string  `json:"header"`
	Group  string  `json:"group,omitempty"`
	Width  float64 `json:"width,omitempty"`
}

// Row maps column keys to cell values.
type Row map[string]any

// Layout selects the body styling of the table.
type Layout string

const (
	// LayoutGeneric bands alternate data rows.
	LayoutGeneric Layout = "generic"
	// LayoutParentList is the wide student/parent table with grouped headers.
	LayoutParentList Layout = "parent-list"
	// LayoutAbsence is the plain absence sheet with a bold total column.
	LayoutAbsence Layout = "absence"
)

// Signature holds the two labels printed under the table.
type Signature struct {
	Left  string
	Right string
}

// Config is everything the letterhead builder needs.
type Config struct {
	SheetName  string
	SchoolName string
	Title      string
	Period     string
	Columns    []Column
	Rows       []Row
	Layout     Layout
	Signature  Signature
	// EmphasisKey names the column drawn bold in the absence layout.
	EmphasisKey string
	// Date is printed above the signatures. Zero means today.
	Date time.Time
}

const (
	defaultSheet = "Report"
	defaultWidth = 14
	headerStart  = 7
)

type styles struct {
	kingdom, motto, school, title, period int
	header, cell, banded, emphasis        int
	dateLine, signature                   int
}

func border() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func newStyles(f *excelize.File) (styles, error) {
	var (
		s   styles
		err error
	)
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	left := &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true}

	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.kingdom, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Muol Light", Size: 12}, Alignment: center}},
		{&s.motto, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Muol Light", Size: 11}, Alignment: center}},
		{&s.school, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Battambang", Size: 11, Bold: true}, Alignment: left}},
		{&s.title, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Muol Light", Size: 13}, Alignment: center}},
		{&s.period, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Battambang", Size: 11}, Alignment: center}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Family: "Khmer OS Battambang", Size: 10, Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
			Border:    border(),
			Alignment: center,
		}},
		{&s.cell, &excelize.Style{
			Font:      &excelize.Font{Family: "Khmer OS Battambang", Size: 10},
			Border:    border(),
			Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		}},
		{&s.banded, &excelize.Style{
			Font:      &excelize.Font{Family: "Khmer OS Battambang", Size: 10},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#F2F2F2"}},
			Border:    border(),
			Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		}},
		{&s.emphasis, &excelize.Style{
			Font:      &excelize.Font{Family: "Khmer OS Battambang", Size: 10, Bold: true},
			Border:    border(),
			Alignment: center,
		}},
		{&s.dateLine, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Battambang", Size: 10, Italic: true}, Alignment: center}},
		{&s.signature, &excelize.Style{Font: &excelize.Font{Family: "Khmer OS Muol Light", Size: 10}, Alignment: center}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return s, fmt.Errorf("create style: %w", err)
		}
	}
	return s, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// builder carries the sticky error of a workbook build.
type builder struct {
	f     *excelize.File
	sheet string
	st    styles
	err   error
}

func (b *builder) set(col, row int, v any) {
	if b.err != nil {
		return
	}
	b.err = b.f.SetCellValue(b.sheet, cell(col, row), v)
}

func (b *builder) merge(c1, r1, c2, r2 int) {
	if b.err != nil || (c1 == c2 && r1 == r2) {
		return
	}
	b.err = b.f.MergeCell(b.sheet, cell(c1, r1), cell(c2, r2))
}

func (b *builder) style(c1, r1, c2, r2, id int) {
	if b.err != nil {
		return
	}
	b.err = b.f.SetCellStyle(b.sheet, cell(c1, r1), cell(c2, r2), id)
}

// line writes v merged across columns 1..width on row.
func (b *builder) line(row, width int, v string, style int) {
	b.set(1, row, v)
	b.merge(1, row, width, row)
	b.style(1, row, width, row, style)
}

func hasGroups(cols []Column) bool {
	for _, c := range cols {
		if c.Group != "" {
			return true
		}
	}
	return false
}

// header writes the header rows and returns the first data row.
func (b *builder) header(cols []Column) int {
	row := headerStart
	if !hasGroups(cols) {
		for i, c := range cols {
			b.set(i+1, row, c.Header)
		}
		b.style(1, row, len(cols), row, b.st.header)
		return row + 1
	}

	sub := row + 1
	for i := 0; i < len(cols); {
		c := cols[i]
		if c.Group == "" {
			b.set(i+1, row, c.Header)
			b.merge(i+1, row, i+1, sub)
			i++
			continue
		}
		j := i
		for j+1 < len(cols) && cols[j+1].Group == c.Group {
			j++
		}
		b.set(i+1, row, c.Group)
		b.merge(i+1, row, j+1, row)
		for k := i; k <= j; k++ {
			b.set(k+1, sub, cols[k].Header)
		}
		i = j + 1
	}
	b.style(1, row, len(cols), sub, b.st.header)
	return sub + 1
}

func (b *builder) body(cfg Config, first int) int {
	emphasis := -1
	if cfg.Layout == LayoutAbsence {
		for i, c := range cfg.Columns {
			if c.Key == cfg.EmphasisKey {
				emphasis = i + 1
			}
		}
	}
	width := len(cfg.Columns)
	row := first
	for n, r := range cfg.Rows {
		for i, c := range cfg.Columns {
			if v, ok := r[c.Key]; ok && v != nil {
				b.set(i+1, row, v)
			}
		}
		st := b.st.cell
		if cfg.Layout == LayoutGeneric && n%2 == 1 {
			st = b.st.banded
		}
		b.style(1, row, width, row, st)
		if emphasis > 0 {
			b.style(emphasis, row, emphasis, row, b.st.emphasis)
		}
		row++
	}
	return row
}

// signature writes the date line and the two labels under the table.
func (b *builder) signature(cfg Config, row int) {
	width := len(cfg.Columns)
	date := cfg.Date
	if date.IsZero() {
		date = time.Now()
	}
	half := width / 2
	if half < 1 {
		half = 1
	}

	row++
	rightStart := half + 1
	if rightStart > width {
		rightStart = width
	}
	b.set(rightStart, row, locale.LongDate(date))
	b.merge(rightStart, row, width, row)
	b.style(rightStart, row, width, row, b.st.dateLine)

	row++
	b.set(1, row, cfg.Signature.Left)
	b.merge(1, row, half, row)
	b.style(1, row, half, row, b.st.signature)
	if width < 2 {
		row++
	}
	b.set(rightStart, row, cfg.Signature.Right)
	b.merge(rightStart, row, width, row)
	b.style(rightStart, row, width, row, b.st.signature)
}

// BuildLetterheadWorkbook builds the workbook of one report. The caller owns
// the returned file and must Close it.
func BuildLetterheadWorkbook(cfg Config) (*excelize.File, error) {
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("workbook %q has no columns", cfg.Title)
	}
	if cfg.Layout == "" {
		cfg.Layout = LayoutGeneric
	}
	name := cfg.SheetName
	if name == "" {
		name = defaultSheet
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		f.Close()
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	b := &builder{f: f, sheet: name, st: st}

	width := len(cfg.Columns)
	b.line(1, width, locale.T(locale.Kingdom), st.kingdom)
	b.line(2, width, locale.T(locale.NationReligionKing), st.motto)
	b.line(3, width, cfg.SchoolName, st.school)
	b.line(4, width, cfg.Title, st.title)
	b.line(5, width, cfg.Period, st.period)

	first := b.header(cfg.Columns)
	last := b.body(cfg, first)
	b.signature(cfg, last)

	for i, c := range cfg.Columns {
		w := c.Width
		if w <= 0 {
			w = defaultWidth
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if b.err == nil {
			b.err = f.SetColWidth(name, col, col, w)
		}
	}
	if b.err == nil {
		b.err = f.SetRowHeight(name, 4, 24)
	}
	if b.err != nil {
		f.Close()
		return nil, fmt.Errorf("build workbook %q: %w", cfg.Title, b.err)
	}
	return f, nil
}

// WriteXLSX builds the workbook and streams it to w.
func WriteXLSX(w io.Writer, cfg Config) error {
	f, err := BuildLetterheadWorkbook(cfg)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
