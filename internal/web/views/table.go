package views

import (
	"context"
	"io"
	"net/url"
	"slices"
	"strconv"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/entities"
)

// PanelID is the DOM id of the swappable table panel.
const PanelID = "table-panel"

// PageSizes are offered in the page size picker.
var PageSizes = []int{10, 20, 50, 100}

// ExportFormats are offered when export is enabled.
var ExportFormats = []datatable.Format{datatable.FormatCSV, datatable.FormatXLSX, datatable.FormatPDF}

// Panel is everything the table panel needs.
type Panel struct {
	Entity  string
	Label   string
	MountID string
	// BasePath is the entity's page path; actions post below it.
	BasePath string
	// Query is the canonical encoded table state.
	Query   string
	View    datatable.View
	Formats map[string]entities.Format
	Filters []entities.FilterDef
}

func (p Panel) action(name string) string { return p.BasePath + "/" + name }

func (p Panel) exportHref(format datatable.Format, scope datatable.Scope) string {
	q, _ := url.ParseQuery(p.Query)
	q.Set("format", string(format))
	q.Set("scope", string(scope))
	q.Set("mount", p.MountID)
	return p.BasePath + "/export?" + q.Encode()
}

// TablePage is the full page for one table.
func TablePage(nav []NavGroup, p Panel) templ.Component {
	return Page(p.Label, nav, Table(p))
}

// Table renders the table panel. htmx swaps the whole panel after every
// action.
func Table(p Panel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		v := p.View
		h := &html{w: w}

		h.raw(`<section class="dt dt--` + templ.EscapeString(string(v.Size)) + `"`)
		h.attr("id", PanelID)
		h.attr("data-entity", p.Entity)
		h.attr("data-status", string(v.Status))
		h.attr("hx-headers", jsonAttr(map[string]string{"X-Table-Mount": p.MountID}))
		h.raw(` hx-target="this" hx-swap="outerHTML">`)

		h.raw(`<header class="dt-header"><h1>`)
		h.text(p.Label)
		h.raw(`</h1>`)
		writeToolbar(h, p)
		h.raw(`</header>`)

		if v.Error != nil {
			h.render(ctx, ErrorAlert(v.Error.Message, v.Error.Action, v.Error.Code, p.action("refresh")))
		}
		if v.Placeholder {
			h.raw(`<p class="dt-stale" role="status">Showing previous results while loading…</p>`)
		}

		writeGrid(h, p)
		writeFooter(h, p)
		h.raw(`</section>`)
		return h.err
	})
}

func writeToolbar(h *html, p Panel) {
	v := p.View
	h.raw(`<div class="dt-toolbar">`)

	if v.Search != nil {
		h.raw(`<input type="search" name="q" class="dt-search" autocomplete="off"`)
		h.attr("value", v.Search.Input)
		h.attr("placeholder", v.Search.Placeholder)
		h.attr("aria-label", v.Search.Placeholder)
		h.attr("hx-post", p.action("search"))
		h.rawf(` hx-trigger="input changed delay:%dms, search"`, v.Search.DelayMillis)
		h.raw(`>`)
		if v.Status == datatable.StatusSearching || v.Search.Pending {
			h.raw(`<span class="dt-spinner" role="status">Searching…</span>`)
		}
	}

	for _, f := range p.Filters {
		current := v.Filters[f.Key]
		if current == "" {
			current = f.Sentinel
		}
		h.raw(`<label class="dt-filter"><span>`)
		h.text(f.Label)
		h.raw(`</span><select name="value"`)
		h.attr("hx-post", p.action("filter"))
		h.attr("hx-vals", jsonAttr(map[string]string{"key": f.Key}))
		h.raw(`><option`)
		h.attr("value", f.Sentinel)
		h.flag("selected", current == f.Sentinel)
		h.raw(`>All</option>`)
		for _, opt := range f.Options {
			h.raw(`<option`)
			h.attr("value", opt)
			h.flag("selected", current == opt)
			h.raw(`>`)
			h.text(entities.StatusLabel(opt))
			h.raw(`</option>`)
		}
		h.raw(`</select></label>`)
	}

	if v.Options.EnableDateFilter {
		var from, to string
		if dr := v.Request.DateRange; dr != nil {
			from, to = dr.From, dr.To
		}
		h.raw(`<form class="dt-dates" hx-trigger="change"`)
		h.attr("hx-post", p.action("dates"))
		h.raw(`><input type="date" name="from" aria-label="From"`)
		h.attr("value", from)
		h.raw(`><input type="date" name="to" aria-label="To"`)
		h.attr("value", to)
		h.raw(`></form>`)
	}

	if v.Options.EnableColumnVisibility {
		h.raw(`<details class="dt-columns"><summary>Columns</summary><ul>`)
		for _, c := range v.AllColumns {
			if !c.Hideable {
				continue
			}
			h.raw(`<li><label><input type="checkbox" name="visible" value="true"`)
			h.flag("checked", c.Visible)
			h.attr("hx-post", p.action("columns"))
			h.attr("hx-vals", jsonAttr(map[string]string{"column": c.ID}))
			h.raw(`> `)
			h.text(c.Header)
			h.raw(`</label></li>`)
		}
		h.raw(`</ul></details>`)
	}

	if v.Options.EnableExport {
		h.raw(`<details class="dt-export"><summary>Export</summary><ul>`)
		for _, scope := range []datatable.Scope{datatable.ScopePage, datatable.ScopeAll} {
			for _, f := range ExportFormats {
				h.raw(`<li><a download`)
				h.attr("href", p.exportHref(f, scope))
				h.raw(`>`)
				if scope == datatable.ScopeAll {
					h.raw(`All rows`)
				} else {
					h.raw(`This page`)
				}
				h.raw(` (`)
				h.text(string(f))
				h.raw(`)</a></li>`)
			}
		}
		h.raw(`</ul></details>`)
	}

	h.raw(`<button type="button" class="btn btn-ghost"`)
	h.attr("hx-post", p.action("refresh"))
	h.raw(`>Refresh</button></div>`)
}

func sortLabel(o datatable.SortOrder) string {
	switch o {
	case datatable.SortAsc:
		return "ascending"
	case datatable.SortDesc:
		return "descending"
	}
	return "none"
}

func writeGrid(h *html, p Panel) {
	v := p.View
	h.raw(`<div class="dt-scroll"><table class="dt-table"`)
	if v.Options.EnableKeyboardNavigation {
		h.raw(` tabindex="0"`)
		h.attr("data-keys-url", p.action("key"))
	}
	h.raw(`><thead><tr>`)

	var dataCols []datatable.ColumnView
	for _, c := range v.Columns {
		if c.Select {
			h.raw(`<th class="dt-select" scope="col"><input type="checkbox" aria-label="Select page"`)
			if v.Selection != nil {
				h.attr("data-state", v.Selection.Header.String())
				h.flag("checked", v.Selection.Header == datatable.Checked)
			}
			h.attr("hx-post", p.action("select-page"))
			h.raw(`></th>`)
			continue
		}
		dataCols = append(dataCols, c)
		h.raw(`<th scope="col"`)
		if c.Width > 0 {
			h.attr("style", "width:"+strconv.Itoa(c.Width)+"px")
		}
		if !c.Sortable {
			h.raw(`>`)
			h.text(c.Header)
			h.raw(`</th>`)
			continue
		}
		h.attr("aria-sort", sortLabel(c.Sorted))
		h.raw(`><button type="button" class="dt-sort"`)
		h.attr("hx-post", p.action("sort"))
		h.attr("hx-vals", jsonAttr(map[string]string{"column": c.ID}))
		h.raw(`>`)
		h.text(c.Header)
		switch c.Sorted {
		case datatable.SortAsc:
			h.raw(` <span aria-hidden="true">▲</span>`)
		case datatable.SortDesc:
			h.raw(` <span aria-hidden="true">▼</span>`)
		}
		h.raw(`</button></th>`)
	}
	h.raw(`</tr></thead><tbody>`)

	switch {
	case len(v.Rows) == 0 && v.Status == datatable.StatusInitialLoading:
		h.rawf(`<tr><td class="dt-empty" colspan="%d">Loading…</td></tr>`, len(v.Columns))
	case len(v.Rows) == 0 && v.Error == nil:
		h.rawf(`<tr><td class="dt-empty" colspan="%d">No results</td></tr>`, len(v.Columns))
	}

	for _, row := range v.Rows {
		h.raw(`<tr`)
		h.attr("data-id", string(row.ID))
		class := ""
		if row.Selected {
			class += " is-selected"
		}
		if row.Focused {
			class += " is-focused"
		}
		if class != "" {
			h.attr("class", class[1:])
		}
		if v.Options.EnableClickRowSelect || v.Options.EnableKeyboardNavigation {
			h.attr("hx-post", p.action("click"))
			h.attr("hx-vals", jsonAttr(map[string]string{"id": string(row.ID)}))
			h.raw(` hx-trigger="click"`)
		}
		h.raw(`>`)
		if v.Selection != nil {
			h.raw(`<td class="dt-select"><input type="checkbox" onclick="event.stopPropagation()"`)
			h.attr("aria-label", "Select row "+string(row.ID))
			h.flag("checked", row.Selected)
			h.attr("hx-post", p.action("select"))
			h.attr("hx-vals", jsonAttr(map[string]string{"id": string(row.ID)}))
			h.raw(`></td>`)
		}
		for i, cell := range row.Cells {
			h.raw(`<td>`)
			if i < len(dataCols) {
				h.text(p.Formats[dataCols[i].ID].Display(cell))
			} else {
				h.text(datatable.FormatCell(cell))
			}
			h.raw(`</td>`)
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table></div>`)
}

func writeFooter(h *html, p Panel) {
	v := p.View
	pg := v.Pagination
	h.raw(`<footer class="dt-footer"><p class="dt-range">`)
	if pg.Total > 0 {
		h.text("Showing " + humanize.Comma(pg.FirstRow()) + "–" + humanize.Comma(pg.LastRow()) +
			" of " + humanize.Comma(pg.Total))
	} else {
		h.raw(`No rows`)
	}
	h.raw(`</p>`)

	if v.Selection != nil && v.Selection.Summary.TotalSelectedCount > 0 {
		sum := v.Selection.Summary
		h.raw(`<p class="dt-selection">`)
		h.text(humanize.Comma(int64(sum.TotalSelectedCount)) + " selected")
		if n := len(sum.SelectedRows); n != sum.TotalSelectedCount {
			h.text(" (" + strconv.Itoa(n) + " on this page)")
		}
		h.raw(` <button type="button" class="btn btn-link"`)
		h.attr("hx-post", p.action("clear-selection"))
		h.raw(`>Clear</button></p>`)
	}

	sizes := PageSizes
	if !slices.Contains(sizes, v.Request.PageSize) {
		sizes = append(slices.Clone(sizes), v.Request.PageSize)
		slices.Sort(sizes)
	}
	h.raw(`<label class="dt-page-size">Rows per page <select name="size"`)
	h.attr("hx-post", p.action("page-size"))
	h.raw(`>`)
	for _, n := range sizes {
		h.raw(`<option`)
		h.attr("value", strconv.Itoa(n))
		h.flag("selected", n == v.Request.PageSize)
		h.raw(`>`)
		h.raw(strconv.Itoa(n))
		h.raw(`</option>`)
	}
	h.raw(`</select></label>`)

	h.raw(`<nav class="dt-pager" aria-label="Pagination">`)
	writePageButton(h, p, "Previous", pg.PreviousPage)
	h.raw(`<span>Page `)
	h.raw(strconv.Itoa(pg.Page))
	if pg.TotalPages > 0 {
		h.raw(` of `)
		h.text(humanize.Comma(int64(pg.TotalPages)))
	}
	h.raw(`</span>`)
	writePageButton(h, p, "Next", pg.NextPage)
	h.raw(`</nav></footer>`)
}

func writePageButton(h *html, p Panel, label string, page *int) {
	h.raw(`<button type="button" class="btn"`)
	if page == nil {
		h.raw(` disabled`)
	} else {
		h.attr("hx-post", p.action("page"))
		h.attr("hx-vals", jsonAttr(map[string]string{"page": strconv.Itoa(*page)}))
	}
	h.raw(`>`)
	h.text(label)
	h.raw(`</button>`)
}
