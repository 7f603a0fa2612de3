package datatable

// CheckState is the state of a tri-state checkbox.
type CheckState int

const (
	Unchecked CheckState = iota
	Indeterminate
	Checked
)

func (s CheckState) String() string {
	switch s {
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unchecked"
	}
}

// SelectionTracker holds the set of selected row ids across pages. It is
// keyed only by id, so navigation, sorting and re-fetching never change
// membership. The zero value is not usable; call NewSelectionTracker.
type SelectionTracker struct {
	ids   map[RowID]struct{}
	order []RowID
}

// NewSelectionTracker returns an empty tracker.
func NewSelectionTracker() *SelectionTracker {
	return &SelectionTracker{ids: make(map[RowID]struct{})}
}

// Select adds id. Empty ids are ignored.
func (s *SelectionTracker) Select(id RowID) bool {
	if id == "" {
		return false
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Deselect removes id. Removing an id that isn't selected is a no-op.
func (s *SelectionTracker) Deselect(id RowID) bool {
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Toggle flips id and reports whether it is now selected.
func (s *SelectionTracker) Toggle(id RowID) bool {
	if s.IsSelected(id) {
		s.Deselect(id)
		return false
	}
	return s.Select(id)
}

// SelectAllOnPage selects every id on the current page and returns how
// many were newly added. Ids selected on other pages are untouched.
func (s *SelectionTracker) SelectAllOnPage(pageIDs []RowID) int {
	added := 0
	for _, id := range pageIDs {
		if s.Select(id) {
			added++
		}
	}
	return added
}

// DeselectAllOnPage removes the current page's ids and returns how many
// were removed.
func (s *SelectionTracker) DeselectAllOnPage(pageIDs []RowID) int {
	removed := 0
	for _, id := range pageIDs {
		if s.Deselect(id) {
			removed++
		}
	}
	return removed
}

// Clear empties the selection.
func (s *SelectionTracker) Clear() {
	s.ids = make(map[RowID]struct{})
	s.order = nil
}

// IsSelected reports whether id is selected.
func (s *SelectionTracker) IsSelected(id RowID) bool {
	_, ok := s.ids[id]
	return ok
}

// Count is the number of selected ids across all pages.
func (s *SelectionTracker) Count() int {
	return len(s.ids)
}

// HeaderState is the "select all" checkbox for a page: Checked only when
// every id on the page is selected, Indeterminate when some are.
func (s *SelectionTracker) HeaderState(pageIDs []RowID) CheckState {
	if len(pageIDs) == 0 {
		return Unchecked
	}
	n := 0
	for _, id := range pageIDs {
		if s.IsSelected(id) {
			n++
		}
	}
	switch {
	case n == 0:
		return Unchecked
	case n == len(pageIDs):
		return Checked
	default:
		return Indeterminate
	}
}

// SelectionSummary reports the selection for display and bulk actions.
type SelectionSummary struct {
	// SelectedRows holds the selected rows of the current page only.
	SelectedRows []Row `json:"selectedRows"`
	// AllSelectedIDs holds every selected id, in selection order.
	AllSelectedIDs     []RowID `json:"allSelectedIds"`
	TotalSelectedCount int     `json:"totalSelectedCount"`
}

// Summary builds the summary against the rows currently rendered.
func (s *SelectionTracker) Summary(pageRows []Row, idField string) SelectionSummary {
	sum := SelectionSummary{
		SelectedRows:       []Row{},
		AllSelectedIDs:     append([]RowID{}, s.order...),
		TotalSelectedCount: len(s.ids),
	}
	for _, row := range pageRows {
		if s.IsSelected(IDOf(row, idField)) {
			sum.SelectedRows = append(sum.SelectedRows, row)
		}
	}
	return sum
}
