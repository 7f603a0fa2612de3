package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// SelectionResponse is the result of a selection request.
type SelectionResponse struct {
	Entity  string                     `json:"entity"`
	Mount   string                     `json:"mount"`
	Header  string                     `json:"header"`
	Summary datatable.SelectionSummary `json:"summary"`
}

// selectionOps are the operations of POST /api/tables/{entity}/selection.
// The row operations read the id form value.
var selectionOps = map[string]func(t *datatable.Table, id datatable.RowID) error{
	"select":   (*datatable.Table).Select,
	"deselect": (*datatable.Table).Deselect,
	"toggle":   (*datatable.Table).ToggleRow,
	"toggle-page": func(t *datatable.Table, _ datatable.RowID) error {
		_, err := t.ToggleAllOnPage()
		return err
	},
	"clear": func(t *datatable.Table, _ datatable.RowID) error {
		return t.ResetSelection()
	},
}

// handleSelection changes the selection of the mounted table and returns
// the selection summary for the current page.
//
// Form values:
//   - op: select, deselect, toggle, toggle-page or clear
//   - id: the row, for select, deselect and toggle
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: form: %v", errBadParam, err), http.StatusBadRequest)
		return
	}
	op := r.FormValue("op")
	apply, ok := selectionOps[op]
	if !ok {
		s.respondError(w, r, badParam("op", op), http.StatusBadRequest)
		return
	}
	var id datatable.RowID
	switch op {
	case "select", "deselect", "toggle":
		var err error
		if id, err = formRowID(r); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	def, err := lookup(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	m, _, err := s.mountTable(r, def)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.mounts.release(m)

	// The page rows decide toggle-page and the summary's selected rows.
	if err := m.table.Load(r.Context()); err != nil && !errors.Is(err, datatable.ErrStaleResponse) {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := apply(m.table, id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	sum, err := m.table.Selection()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	resp := SelectionResponse{Entity: def.Key, Mount: m.key.id, Summary: sum}
	if sel := m.table.View().Selection; sel != nil {
		resp.Header = sel.Header.String()
	}
	writeJSON(w, http.StatusOK, resp)
}
