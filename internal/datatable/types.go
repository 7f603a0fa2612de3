package datatable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultPageSize is the page size used when neither the URL nor the table
// defaults specify one.
const DefaultPageSize = 20

// MaxPageSize bounds the page size accepted from the URL.
const MaxPageSize = 500

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder returns the order for s, reporting false for anything
// other than "asc" or "desc" (case-insensitive).
func ParseSortOrder(s string) (SortOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return SortAsc, true
	case "desc":
		return SortDesc, true
	}
	return "", false
}

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == SortDesc {
		return SortAsc
	}
	return SortDesc
}

// DateRange is an inclusive from/to filter. Dates are kept as the
// YYYY-MM-DD strings that travel in the URL and API.
type DateRange struct {
	From string `json:"from_date,omitempty"`
	To   string `json:"to_date,omitempty"`
}

// IsZero reports whether neither bound is set.
func (d *DateRange) IsZero() bool {
	return d == nil || (d.From == "" && d.To == "")
}

// PageRequest is an immutable snapshot of everything that drives one fetch.
// Setters return modified copies; the receiver is never changed.
type PageRequest struct {
	Page      int               `json:"page"`
	PageSize  int               `json:"pageSize"`
	Search    string            `json:"search,omitempty"`
	SortBy    string            `json:"sortBy,omitempty"`
	SortOrder SortOrder         `json:"sortOrder"`
	DateRange *DateRange        `json:"dateRange,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// clone deep-copies the maps and pointers so callers can't alias state.
func (r PageRequest) clone() PageRequest {
	out := r
	if r.DateRange != nil {
		dr := *r.DateRange
		out.DateRange = &dr
	}
	if r.Filters != nil {
		out.Filters = make(map[string]string, len(r.Filters))
		for k, v := range r.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// WithPage returns a copy targeting page p (clamped to 1).
func (r PageRequest) WithPage(p int) PageRequest {
	out := r.clone()
	if p < 1 {
		p = 1
	}
	out.Page = p
	return out
}

// WithPageSize returns a copy with a new page size, back on page 1.
func (r PageRequest) WithPageSize(n int) PageRequest {
	out := r.clone()
	if n > 0 {
		out.PageSize = n
	}
	out.Page = 1
	return out
}

// WithSearch returns a copy with a new search term, back on page 1.
func (r PageRequest) WithSearch(s string) PageRequest {
	out := r.clone()
	out.Search = s
	out.Page = 1
	return out
}

// WithSort returns a copy with a new sort, back on page 1.
func (r PageRequest) WithSort(by string, order SortOrder) PageRequest {
	out := r.clone()
	out.SortBy = by
	if order != SortAsc && order != SortDesc {
		order = SortAsc
	}
	out.SortOrder = order
	out.Page = 1
	return out
}

// WithFilter returns a copy with key set to value (removed when value is
// empty), back on page 1.
func (r PageRequest) WithFilter(key, value string) PageRequest {
	out := r.clone()
	if value == "" {
		delete(out.Filters, key)
	} else {
		if out.Filters == nil {
			out.Filters = make(map[string]string)
		}
		out.Filters[key] = value
	}
	out.Page = 1
	return out
}

// WithDateRange returns a copy with a new date range (nil clears it), back
// on page 1.
func (r PageRequest) WithDateRange(dr *DateRange) PageRequest {
	out := r.clone()
	if dr.IsZero() {
		out.DateRange = nil
	} else {
		d := *dr
		out.DateRange = &d
	}
	out.Page = 1
	return out
}

// Offset is the zero-based row offset of the requested page.
func (r PageRequest) Offset() int {
	if r.Page < 1 || r.PageSize < 1 {
		return 0
	}
	return (r.Page - 1) * r.PageSize
}

// Key is a canonical identity for the request. Two requests with the same
// key fetch the same page.
func (r PageRequest) Key() string {
	var b strings.Builder
	b.WriteString("p=")
	b.WriteString(strconv.Itoa(r.Page))
	b.WriteString("&n=")
	b.WriteString(strconv.Itoa(r.PageSize))
	b.WriteString("&q=")
	b.WriteString(r.Search)
	b.WriteString("&s=")
	b.WriteString(r.SortBy)
	b.WriteString(":")
	b.WriteString(string(r.SortOrder))
	if !r.DateRange.IsZero() {
		b.WriteString("&d=")
		b.WriteString(r.DateRange.From)
		b.WriteString("..")
		b.WriteString(r.DateRange.To)
	}
	keys := make([]string, 0, len(r.Filters))
	for k := range r.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "&f.%s=%s", k, r.Filters[k])
	}
	return b.String()
}

// Row is one record as returned by a fetch function.
type Row map[string]any

// RowID is the stable identity of a row, taken from the table's id field.
type RowID string

// IDOf extracts the identity of row from field. Rows without the field
// yield the empty id.
func IDOf(row Row, field string) RowID {
	v, ok := row[field]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return RowID(val)
	case RowID:
		return val
	case fmt.Stringer:
		return RowID(val.String())
	default:
		return RowID(fmt.Sprint(val))
	}
}

// PaginationInfo describes where a page sits in the full result set.
// Total is reported by the server and never recomputed from rows.
type PaginationInfo struct {
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	Total           int64 `json:"total"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
	NextPage        *int  `json:"nextPage"`
	PreviousPage    *int  `json:"previousPage"`
}

// NewPaginationInfo builds a PaginationInfo from page, limit and total,
// deriving every other field.
func NewPaginationInfo(page, limit int, total int64) PaginationInfo {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PaginationInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}.Normalize()
}

// Normalize re-derives the navigation flags from Page and TotalPages so
// that HasNextPage == Page < TotalPages and HasPreviousPage == Page > 1.
func (p PaginationInfo) Normalize() PaginationInfo {
	p.HasNextPage = p.Page < p.TotalPages
	p.HasPreviousPage = p.Page > 1
	p.NextPage = nil
	p.PreviousPage = nil
	if p.HasNextPage {
		n := p.Page + 1
		p.NextPage = &n
	}
	if p.HasPreviousPage {
		n := p.Page - 1
		p.PreviousPage = &n
	}
	return p
}

// FirstRow and LastRow return the 1-based row range shown on this page,
// or 0, 0 for an empty result.
func (p PaginationInfo) FirstRow() int64 {
	if p.Total == 0 {
		return 0
	}
	return int64(p.Page-1)*int64(p.Limit) + 1
}

func (p PaginationInfo) LastRow() int64 {
	if p.Total == 0 {
		return 0
	}
	last := int64(p.Page) * int64(p.Limit)
	if last > p.Total {
		last = p.Total
	}
	return last
}

// PageResult is the response of one fetch.
type PageResult struct {
	Data       []Row          `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}
