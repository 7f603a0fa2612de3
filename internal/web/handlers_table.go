package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// tableAction applies one action to a mounted table. refresh asks the
// caller to bypass cached pages when it reloads.
type tableAction func(r *http.Request, t *datatable.Table) (refresh bool, err error)

// tableActions are the actions served at /admin/{entity}/{action}.
var tableActions = map[string]tableAction{
	"page":            actPage,
	"next":            actNext,
	"prev":            actPrev,
	"page-size":       actPageSize,
	"sort":            actSort,
	"search":          actSearch,
	"clear-search":    actClearSearch,
	"filter":          actFilter,
	"dates":           actDates,
	"columns":         actColumns,
	"width":           actWidth,
	"select":          actSelect,
	"select-page":     actSelectPage,
	"clear-selection": actClearSelection,
	"click":           actClick,
	"key":             actKey,
	"refresh":         actRefresh,
}

func actPage(r *http.Request, t *datatable.Table) (bool, error) {
	n, err := formInt(r, "page")
	if err != nil {
		return false, err
	}
	t.SetPage(n)
	return false, nil
}

func actNext(r *http.Request, t *datatable.Table) (bool, error) {
	t.NextPage()
	return false, nil
}

func actPrev(r *http.Request, t *datatable.Table) (bool, error) {
	t.PrevPage()
	return false, nil
}

func actPageSize(r *http.Request, t *datatable.Table) (bool, error) {
	n, err := formInt(r, "size")
	if err != nil {
		return false, err
	}
	if n < 1 {
		return false, badParam("size", r.FormValue("size"))
	}
	t.SetPageSize(n)
	return false, nil
}

// actSort sorts by column. Without an explicit order it toggles.
func actSort(r *http.Request, t *datatable.Table) (bool, error) {
	column := r.FormValue("column")
	raw := r.FormValue("order")
	if raw == "" {
		return false, t.ToggleSort(column)
	}
	order, ok := datatable.ParseSortOrder(raw)
	if !ok {
		return false, badParam("order", raw)
	}
	return false, t.SetSort(column, order)
}

// actSearch records search input. htmx already waited out the debounce
// delay before posting, so the value is committed at once unless the
// client sends commit=false and lets the table's own debouncer decide.
func actSearch(r *http.Request, t *datatable.Table) (bool, error) {
	t.TypeSearch(strings.TrimSpace(r.FormValue("q")))
	if r.FormValue("commit") != "false" {
		t.CommitSearch()
	}
	return false, nil
}

func actClearSearch(r *http.Request, t *datatable.Table) (bool, error) {
	t.ClearSearch()
	return false, nil
}

func actFilter(r *http.Request, t *datatable.Table) (bool, error) {
	return false, t.SetFilter(r.FormValue("key"), r.FormValue("value"))
}

func actDates(r *http.Request, t *datatable.Table) (bool, error) {
	from, err := formDate(r, "from")
	if err != nil {
		return false, err
	}
	to, err := formDate(r, "to")
	if err != nil {
		return false, err
	}
	t.SetDateRange(&datatable.DateRange{From: from, To: to})
	return false, nil
}

func actColumns(r *http.Request, t *datatable.Table) (bool, error) {
	return false, t.SetColumnVisible(r.Context(), r.FormValue("column"), formBool(r, "visible"))
}

func actWidth(r *http.Request, t *datatable.Table) (bool, error) {
	width, err := formInt(r, "width")
	if err != nil {
		return false, err
	}
	return false, t.SetColumnWidth(r.Context(), r.FormValue("column"), width)
}

// actSelect toggles a row, or sets it with op=select / op=deselect.
func actSelect(r *http.Request, t *datatable.Table) (bool, error) {
	id, err := formRowID(r)
	if err != nil {
		return false, err
	}
	switch op := r.FormValue("op"); op {
	case "select":
		return false, t.Select(id)
	case "deselect":
		return false, t.Deselect(id)
	case "", "toggle":
		return false, t.ToggleRow(id)
	default:
		return false, badParam("op", op)
	}
}

func actSelectPage(r *http.Request, t *datatable.Table) (bool, error) {
	_, err := t.ToggleAllOnPage()
	return false, err
}

func actClearSelection(r *http.Request, t *datatable.Table) (bool, error) {
	return false, t.ResetSelection()
}

func actClick(r *http.Request, t *datatable.Table) (bool, error) {
	id, err := formRowID(r)
	if err != nil {
		return false, err
	}
	return false, t.ClickRow(id)
}

// actKey applies keyboard navigation. Unhandled keys are ignored.
func actKey(r *http.Request, t *datatable.Table) (bool, error) {
	t.KeyDown(r.FormValue("key"))
	return false, nil
}

// actRefresh is the retry path after a failed load.
func actRefresh(r *http.Request, t *datatable.Table) (bool, error) {
	return true, nil
}
