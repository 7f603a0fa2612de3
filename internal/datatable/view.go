package datatable

import "slices"

// ColumnView is one rendered column.
type ColumnView struct {
	Column
	// Select marks the checkbox column.
	Select bool `json:"select,omitempty"`
	// Sorted is the active direction when the table is sorted by this
	// column, "" otherwise.
	Sorted  SortOrder `json:"sorted,omitempty"`
	Visible bool      `json:"visible"`
}

// RowView is one rendered row. Cells align with View.Columns, excluding
// the checkbox column.
type RowView struct {
	ID       RowID `json:"id"`
	Data     Row   `json:"data"`
	Cells    []any `json:"cells"`
	Selected bool  `json:"selected,omitempty"`
	Focused  bool  `json:"focused,omitempty"`
}

// SelectionView is the selection part of a View. Nil when row selection
// is disabled.
type SelectionView struct {
	Header  CheckState       `json:"header"`
	Summary SelectionSummary `json:"summary"`
}

// SearchView is the search box state. Nil when search is disabled.
type SearchView struct {
	Input       string `json:"input"`
	Committed   string `json:"committed"`
	Pending     bool   `json:"pending"`
	Placeholder string `json:"placeholder"`
	DelayMillis int64  `json:"delayMs"`
}

// View is an immutable snapshot of everything a host needs to draw the
// table.
type View struct {
	Request PageRequest  `json:"request"`
	Status  Status       `json:"status"`
	Error   *UserMessage `json:"error,omitempty"`

	// Columns are the visible columns in order, the checkbox column first
	// when selection is enabled. AllColumns lists every data column for
	// the visibility menu.
	Columns    []ColumnView `json:"columns"`
	AllColumns []ColumnView `json:"allColumns"`

	Rows        []RowView      `json:"rows"`
	Pagination  PaginationInfo `json:"pagination"`
	Placeholder bool           `json:"placeholder,omitempty"`
	FocusedRow  int            `json:"focusedRow"`

	Selection  *SelectionView    `json:"selection,omitempty"`
	Search     *SearchView       `json:"search,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
	FilterDefs []FilterDefault   `json:"-"`

	Options Options `json:"options"`
	Size    Size    `json:"size"`
}

// ShowsColumn reports whether a data column is visible.
func (v View) ShowsColumn(id string) bool {
	for _, c := range v.Columns {
		if c.ID == id && !c.Select {
			return true
		}
	}
	return false
}

// View snapshots the table.
func (t *Table) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := View{
		Request:     t.req,
		Status:      t.statusLocked(),
		Pagination:  t.paginationLocked(),
		Placeholder: t.placeholder,
		FocusedRow:  t.focus,
		Filters:     t.req.Filters,
		FilterDefs:  slices.Clone(t.cfg.Defaults.Filters),
		Options:     t.cfg.Options,
		Size:        t.cfg.Options.Size,
	}
	if t.err != nil {
		msg := MapError(t.err)
		v.Error = &msg
	}

	hidden := map[string]bool{}
	if t.cfg.Options.EnableColumnVisibility {
		for _, id := range t.url.HiddenColumns() {
			hidden[id] = true
		}
	}

	if t.selection != nil {
		v.Columns = append(v.Columns, ColumnView{
			Column:  Column{ID: SelectColumnID, Width: 40},
			Select:  true,
			Visible: true,
		})
	}
	var dataCols []Column
	for _, c := range t.cfg.Columns {
		if w, ok := t.widths[c.ID]; ok {
			c.Width = w
		}
		cv := ColumnView{Column: c, Visible: !(c.Hideable && hidden[c.ID])}
		field := c.Field
		if field == "" {
			field = c.ID
		}
		if c.Sortable && t.req.SortBy == field {
			cv.Sorted = t.req.SortOrder
		}
		v.AllColumns = append(v.AllColumns, cv)
		if cv.Visible {
			v.Columns = append(v.Columns, cv)
			dataCols = append(dataCols, c)
		}
	}

	rows := t.rowsLocked()
	v.Rows = make([]RowView, len(rows))
	for i, row := range rows {
		id := IDOf(row, t.cfg.IDField)
		rv := RowView{ID: id, Data: row, Focused: i == t.focus}
		rv.Cells = make([]any, len(dataCols))
		for j, c := range dataCols {
			field := c.Field
			if field == "" {
				field = c.ID
			}
			rv.Cells[j] = row[field]
		}
		if t.selection != nil {
			rv.Selected = t.selection.IsSelected(id)
		}
		v.Rows[i] = rv
	}

	if t.selection != nil {
		v.Selection = &SelectionView{
			Header:  t.selection.HeaderState(t.pageIDsLocked()),
			Summary: t.selection.Summary(rows, t.cfg.IDField),
		}
	}
	if t.search != nil {
		v.Search = &SearchView{
			Input:       t.search.Value(),
			Committed:   t.req.Search,
			Pending:     t.search.Pending(),
			Placeholder: t.cfg.Options.SearchPlaceholder,
			DelayMillis: t.search.Delay().Milliseconds(),
		}
	}
	return v
}

func (t *Table) statusLocked() Status {
	switch {
	case t.err != nil:
		return StatusError
	case t.result == nil:
		return StatusInitialLoading
	case t.searching:
		return StatusSearching
	case t.loading:
		return StatusRefreshing
	default:
		return StatusReady
	}
}
