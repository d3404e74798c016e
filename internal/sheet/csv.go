package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// bom makes spreadsheet apps open the file as UTF-8.
const bom = "\ufeff"

// csvWriter keeps the first write error so callers check once.
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

// WriteCSV writes a BOM, the header row and one line per row.
func WriteCSV(w io.Writer, cols []Column, rows []Row) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}
	cw := &csvWriter{w: csv.NewWriter(w)}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
		if c.Group != "" {
			header[i] = c.Group + " - " + c.Header
		}
	}
	cw.Write(header)

	line := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			line[i] = FormatValue(r[c.Key])
		}
		cw.Write(line)
	}
	cw.Flush()
	if cw.err != nil {
		return fmt.Errorf("csv write error: %w", cw.err)
	}
	return nil
}

// FormatValue renders a cell value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func isKhmer(r rune) bool {
	return (r >= 0x1780 && r <= 0x17FF) || (r >= 0x19E0 && r <= 0x19FF)
}

// Filename sanitizes name and appends the UTC date of now and ext, e.g.
// "Roster_7A_2026-10-16.xlsx". Characters that are neither ASCII letters or
// digits nor Khmer become "_".
func Filename(name, ext string, now time.Time) string {
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) || isKhmer(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "xlsx"
	}
	return b.String() + "_" + now.UTC().Format("2006-01-02") + "." + ext
}
