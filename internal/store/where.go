package store

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder accumulates parameterised WHERE conditions. Placeholders are
// numbered in the order conditions are added, starting at $1.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends col = value. Empty values are skipped.
func (wb *WhereBuilder) Add(col, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", quoteIdentifier(col), wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddSearch matches query case-insensitively against any of cols. One
// argument is shared by every column.
func (wb *WhereBuilder) AddSearch(query string, cols []string) {
	query = strings.TrimSpace(query)
	if query == "" || len(cols) == 0 {
		return
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s::text ILIKE $%d", quoteIdentifier(c), wb.argIndex)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
	wb.args = append(wb.args, "%"+escapeLike(query)+"%")
	wb.argIndex++
}

// AddDateRange bounds col to [from, to+1day). Zero bounds are open.
func (wb *WhereBuilder) AddDateRange(col string, from, to time.Time) {
	if col == "" {
		return
	}
	if !from.IsZero() {
		wb.conditions = append(wb.conditions, fmt.Sprintf("%s >= $%d", quoteIdentifier(col), wb.argIndex))
		wb.args = append(wb.args, from)
		wb.argIndex++
	}
	if !to.IsZero() {
		wb.conditions = append(wb.conditions, fmt.Sprintf("%s < $%d", quoteIdentifier(col), wb.argIndex))
		wb.args = append(wb.args, to.AddDate(0, 0, 1))
		wb.argIndex++
	}
}

// Build returns " WHERE ..." and its arguments, or "", nil when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex is the placeholder number the next argument would take.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
