package entities

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// Format names how a field's value is presented.
type Format string

const (
	FormatText     Format = ""
	FormatMoney    Format = "money"
	FormatCount    Format = "count"
	FormatStatus   Format = "status"
	FormatDate     Format = "date"
	FormatDateTime Format = "datetime"
	FormatBool     Format = "bool"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatMoney, FormatCount, FormatStatus, FormatDate, FormatDateTime, FormatBool:
		return true
	}
	return false
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Export converts v for an export cell. Numbers stay numeric so spreadsheets
// can sum them; everything else becomes display text. Values that do not fit
// the format pass through unchanged.
func (f Format) Export(v any) any {
	if v == nil {
		return nil
	}
	switch f {
	case FormatMoney:
		if n, ok := toFloat(v); ok {
			return math.Round(n*100) / 100
		}
	case FormatCount:
		if n, ok := toFloat(v); ok {
			return int64(n)
		}
	case FormatStatus:
		return StatusLabel(fmt.Sprint(v))
	case FormatDate:
		if t, ok := toTime(v); ok {
			return t.Format(dateLayout)
		}
	case FormatDateTime:
		if t, ok := toTime(v); ok {
			return t.Format(dateTimeLayout)
		}
	case FormatBool:
		if b, ok := toBool(v); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	}
	return v
}

// Display renders v for a table cell.
func (f Format) Display(v any) string {
	if v == nil {
		return ""
	}
	switch f {
	case FormatMoney:
		if n, ok := toFloat(v); ok {
			return humanize.FormatFloat("#,###.##", n)
		}
	case FormatCount:
		if n, ok := toFloat(v); ok {
			return humanize.Comma(int64(n))
		}
	}
	return datatable.FormatCell(f.Export(v))
}

var statusLabels = map[string]string{
	"ussd":          "USSD",
	"bank_transfer": "Bank Transfer",
	"successful":    "Successful",
	"free":          "Free Vote",
}

// StatusLabel turns a status code into a label: "pending_payment" becomes
// "Pending Payment".
func StatusLabel(code string) string {
	code = strings.TrimSpace(code)
	if label, ok := statusLabels[strings.ToLower(code)]; ok {
		return label
	}
	words := strings.FieldsFunc(code, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func exportTransform(cols []ExportColumnDef) datatable.TransformFunc {
	return func(row datatable.Row) map[string]any {
		out := make(map[string]any, len(cols))
		for _, c := range cols {
			v, ok := row[c.Field]
			if !ok {
				continue
			}
			out[c.Label] = c.Format.Export(v)
		}
		return out
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateTimeLayout, dateLayout} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}
