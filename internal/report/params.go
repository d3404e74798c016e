package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolreport/internal/locale"
	"schoolreport/internal/pipeline"
	"schoolreport/internal/schoolapi"
)

// ErrInvalidParams wraps every parameter validation failure.
var ErrInvalidParams = errors.New("invalid report parameters")

// Format is the artifact file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

const dateLayout = "2006-01-02"

// Params are the inputs of one report run. Dates are YYYY-MM-DD.
type Params struct {
	SchoolID     string `json:"school_id" binding:"required"`
	ClassID      string `json:"class_id,omitempty"`
	SchoolName   string `json:"school_name,omitempty"`
	ClassName    string `json:"class_name,omitempty"`
	Date         string `json:"date,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	AsOf         string `json:"as_of,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`
	Format       Format `json:"format,omitempty" binding:"omitempty,oneof=xlsx csv"`
}

// WithDefaults fills the format and the as-of date.
func (p Params) WithDefaults(now time.Time) Params {
	p.SchoolID = strings.TrimSpace(p.SchoolID)
	p.ClassID = strings.TrimSpace(p.ClassID)
	if p.Format == "" {
		p.Format = FormatXLSX
	}
	if p.AsOf == "" {
		p.AsOf = now.UTC().Format(dateLayout)
	}
	return p
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Validate checks required fields, date shapes and the format.
func (p Params) Validate() error {
	if strings.TrimSpace(p.SchoolID) == "" {
		return invalid("school_id is required")
	}
	dates := map[string]string{"date": p.Date, "start_date": p.StartDate, "end_date": p.EndDate, "as_of": p.AsOf}
	for _, name := range []string{"date", "start_date", "end_date", "as_of"} {
		v := dates[name]
		if v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, v); err != nil {
			return invalid("%s must be YYYY-MM-DD, got %q", name, v)
		}
	}
	if p.StartDate != "" && p.EndDate != "" && p.StartDate > p.EndDate {
		return invalid("start_date %s is after end_date %s", p.StartDate, p.EndDate)
	}
	switch p.Format {
	case "", FormatXLSX, FormatCSV:
	default:
		return invalid("unsupported format %q", p.Format)
	}
	return nil
}

// Period renders the class and date scope printed under the title.
func (p Params) Period() string {
	var parts []string
	if p.ClassName != "" {
		parts = append(parts, locale.T(locale.Class)+" "+p.ClassName)
	}
	switch {
	case p.Date != "":
		parts = append(parts, locale.T(locale.Daily)+" "+locale.FormatDate(p.Date))
	case p.StartDate != "" && p.EndDate != "":
		parts = append(parts, locale.T(locale.From)+" "+locale.FormatDate(p.StartDate)+" "+
			locale.T(locale.Until)+" "+locale.FormatDate(p.EndDate))
	case p.StartDate != "":
		parts = append(parts, locale.T(locale.From)+" "+locale.FormatDate(p.StartDate))
	}
	if p.AcademicYear != "" {
		parts = append(parts, locale.T(locale.AcademicYear)+" "+p.AcademicYear)
	}
	return strings.Join(parts, "  ")
}

func (p Params) asOf() (time.Time, bool) {
	t, err := time.Parse(dateLayout, p.AsOf)
	return t, err == nil
}

func (p Params) scope() pipeline.Scope {
	return pipeline.Scope{
		Date:      p.Date,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		BMIYear:   p.AcademicYear,
	}
}

func (p Params) query() schoolapi.StudentQuery {
	return schoolapi.StudentQuery{SchoolID: p.SchoolID, ClassID: p.ClassID}
}
