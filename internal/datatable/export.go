package datatable

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name from a request.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	case "":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Scope says which rows an export covers.
type Scope string

const (
	// ScopePage exports the rows already fetched for the current page.
	ScopePage Scope = "page"
	// ScopeAll exports the entire filtered result set, fetched in chunks.
	ScopeAll Scope = "all"
)

// ParseScope defaults to ScopePage for anything but "all".
func ParseScope(s string) Scope {
	if strings.EqualFold(strings.TrimSpace(s), string(ScopeAll)) {
		return ScopeAll
	}
	return ScopePage
}

// ExportColumn maps a row field to a header label and a column width.
// A descriptor's Columns are the column mapping in output order.
type ExportColumn struct {
	Field string  `yaml:"field" json:"field"`
	Label string  `yaml:"label" json:"label"`
	Width float64 `yaml:"width" json:"width,omitempty"`
}

// TransformFunc turns a row into label -> export value. Keys must be a
// subset of the descriptor's labels; labels it omits export as empty cells.
type TransformFunc func(Row) map[string]any

// ExportDescriptor describes how an entity is exported.
type ExportDescriptor struct {
	EntityName string
	Columns    []ExportColumn
	Transform  TransformFunc
	Case       CaseConfig
}

// DefaultColumnWidth is used for columns declared without a width.
const DefaultColumnWidth = 18

// Labels returns the header row.
func (d ExportDescriptor) Labels() []string {
	labels := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		labels[i] = c.Label
	}
	return labels
}

// Widths returns the column widths aligned with Labels.
func (d ExportDescriptor) Widths() []float64 {
	widths := make([]float64, len(d.Columns))
	for i, c := range d.Columns {
		widths[i] = c.Width
		if widths[i] <= 0 {
			widths[i] = DefaultColumnWidth
		}
	}
	return widths
}

// transform applies Transform, or maps each column's field straight through
// when the descriptor has none.
func (d ExportDescriptor) transform(row Row) map[string]any {
	if d.Transform != nil {
		return d.Transform(row)
	}
	out := make(map[string]any, len(d.Columns))
	for _, c := range d.Columns {
		out[c.Label] = row[c.Field]
	}
	return out
}

// Records transforms rows into value records in column order. A label the
// transform did not produce becomes nil, which writers render empty.
func (d ExportDescriptor) Records(rows []Row) [][]any {
	records := make([][]any, len(rows))
	for i, row := range rows {
		values := d.transform(row)
		rec := make([]any, len(d.Columns))
		for j, c := range d.Columns {
			rec[j] = values[c.Label]
		}
		records[i] = rec
	}
	return records
}

// Filename builds "<entity>_<YYYYMMDD_HHMMSS>.<ext>".
func Filename(entity string, format Format, at time.Time) string {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		entity = "export"
	}
	entity = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, entity)
	return fmt.Sprintf("%s_%s.%s", entity, at.Format("20060102_150405"), format)
}

// ExportError wraps a failure during an export.
type ExportError struct {
	Scope  Scope
	Format Format
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s (%s): %v", e.Scope, e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// WriteExport renders rows in format and copies the finished file to w.
// Nothing is written to w unless rendering succeeds, so a failed export
// never leaves a partial file behind. Returns the bytes written.
func WriteExport(w io.Writer, format Format, desc ExportDescriptor, rows []Row) (int64, error) {
	var buf bytes.Buffer
	records := desc.Records(rows)

	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(&buf, desc.Labels(), records)
	case FormatXLSX:
		err = writeXLSX(&buf, desc, records)
	case FormatPDF:
		err = writePDF(&buf, desc, records)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return 0, err
	}
	return io.Copy(w, &buf)
}
