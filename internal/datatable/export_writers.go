package datatable

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/xuri/excelize/v2"
)

// FormatCell renders an export value as text. nil becomes "".
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case *time.Time:
		if x == nil {
			return ""
		}
		return FormatCell(*x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func writeCSV(w io.Writer, header []string, records [][]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(header))
	for _, rec := range records {
		for i, v := range rec {
			line[i] = FormatCell(v)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// xlsxValue keeps numbers, booleans and times typed so spreadsheets can
// sort and sum them. Everything else goes in as text.
func xlsxValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, int, int32, int64, float32, float64:
		return x
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x
	default:
		return FormatCell(x)
	}
}

// sheetReplacer blanks the characters Excel rejects in sheet names.
var sheetReplacer = strings.NewReplacer(
	":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// sheetName makes entity a valid worksheet name: at most 31 characters,
// none of : \ / ? * [ ] and no leading or trailing apostrophe.
func sheetName(entity string) string {
	name := strings.Trim(sheetReplacer.Replace(strings.TrimSpace(entity)), "'")
	if r := []rune(name); len(r) > 31 {
		name = strings.TrimRight(string(r[:31]), "'")
	}
	if name == "" {
		name = "Export"
	}
	return name
}

func writeXLSX(w io.Writer, desc ExportDescriptor, records [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(desc.EntityName)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	labels := desc.Labels()
	header := make([]any, len(labels))
	for i, l := range labels {
		header[i] = l
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	if len(labels) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(labels), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	for i, width := range desc.Widths() {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = xlsxValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	return f.Write(w)
}

const (
	pdfRowHeight = 6.0
	pdfFontSize  = 8.0
)

func writePDF(w io.Writer, desc ExportDescriptor, records [][]any) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(desc.EntityName, true)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Scale declared widths to fill the printable page width.
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	avail := pageW - left - right
	widths := desc.Widths()
	var total float64
	for _, wd := range widths {
		total += wd
	}
	for i := range widths {
		widths[i] = widths[i] / total * avail
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(230, 230, 230)
		for i, label := range desc.Labels() {
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, tr(label), widths[i]), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", pdfFontSize)
	}
	pdf.SetHeaderFunc(header)
	pdf.AddPage()

	for _, rec := range records {
		for i, v := range rec {
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, tr(FormatCell(v)), widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// fit truncates s so it fits in a cell of width w.
func fit(pdf *gofpdf.Fpdf, s string, w float64) string {
	const pad = 2.0
	if pdf.GetStringWidth(s) <= w-pad {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > w-pad {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
