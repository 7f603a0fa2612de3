package datatable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/votedesk/internal/clock"
)

// Status is what the table is currently doing.
type Status string

const (
	StatusInitialLoading Status = "initial-loading"
	StatusRefreshing     Status = "refreshing"
	StatusSearching      Status = "searching"
	StatusReady          Status = "ready"
	StatusError          Status = "error"
)

// Config assembles a Table.
type Config struct {
	Columns []Column
	// IDField is the row field that identifies a row. Defaults to "id".
	IDField string
	Fetch   FetchStrategy

	// BulkFetch serves full-dataset exports. When nil and Fetch is an
	// ImperativeFetch, one is derived with ChunkedBulkFetch.
	BulkFetch BulkFetchFunc
	Export    *ExportDescriptor

	Defaults URLDefaults
	Options  Options
	Case     CaseConfig

	// State is the host's URL binding. Ignored unless
	// Options.EnableURLState is set.
	State StatePort
	Prefs PreferenceStore

	Clock         clock.Clock
	Logger        *slog.Logger
	SearchDelay   time.Duration
	PageCacheSize int

	// OnUpdate is called after a load the table started on its own (a
	// debounced search commit) settles.
	OnUpdate func(View)
}

// Table is the table shell: it owns URL state, selection, search and
// fetching for one mounted table and produces a View on demand. All
// methods are safe for concurrent use.
type Table struct {
	cfg       Config
	log       *slog.Logger
	clock     clock.Clock
	cache     *pageCache
	bulk      BulkFetchFunc
	search    *SearchDebouncer
	columns   map[string]Column
	filterSet map[string]bool

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	url         *URLState
	req         PageRequest
	result      *PageResult
	placeholder bool
	loading     bool
	searching   bool
	err         error
	selection   *SelectionTracker
	focus       int
	widths      map[string]int
	prefsLoaded bool
	closed      bool
}

// New validates cfg and builds a table. It does not fetch; call Load.
func New(cfg Config) (*Table, error) {
	if err := validateColumns(cfg.Columns); err != nil {
		return nil, err
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("%w: no fetch strategy", ErrInvalidConfig)
	}
	if cfg.IDField == "" {
		cfg.IDField = "id"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Options.Size == "" {
		cfg.Options.Size = SizeMedium
	}

	t := &Table{
		cfg:       cfg,
		log:       cfg.Logger,
		clock:     cfg.Clock,
		bulk:      cfg.BulkFetch,
		columns:   make(map[string]Column, len(cfg.Columns)),
		filterSet: make(map[string]bool, len(cfg.Defaults.Filters)),
		widths:    make(map[string]int),
		focus:     -1,
	}
	for _, c := range cfg.Columns {
		t.columns[c.ID] = c
	}
	for _, f := range cfg.Defaults.Filters {
		t.filterSet[f.Key] = true
	}

	switch s := cfg.Fetch.(type) {
	case ImperativeFetch:
		if s.Fetch == nil {
			return nil, fmt.Errorf("%w: imperative fetch without a function", ErrInvalidConfig)
		}
		t.cache = newPageCache(s.Fetch, cfg.PageCacheSize)
		if t.bulk == nil {
			t.bulk = ChunkedBulkFetch(s.Fetch)
		}
	case ReactiveQuery:
		if s.Hook == nil {
			return nil, fmt.Errorf("%w: reactive query without a hook", ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: unknown fetch strategy %T", ErrInvalidConfig, cfg.Fetch)
	}

	port := cfg.State
	if port == nil || !cfg.Options.EnableURLState {
		port = NewMemoryPort()
	}
	t.url = NewURLState(port, cfg.Defaults, cfg.Case)
	t.req = t.url.Request()
	t.url.Write(t.req)

	if cfg.Options.EnableRowSelection {
		t.selection = NewSelectionTracker()
	}
	if cfg.Options.EnableSearch {
		t.search = NewSearchDebouncer(cfg.Clock, cfg.SearchDelay, t.req.Search, t.commitSearch)
	}

	t.bg, t.cancel = context.WithCancel(context.Background())
	return t, nil
}

// Options returns the table's feature flags.
func (t *Table) Options() Options { return t.cfg.Options }

// IDField returns the row identity field.
func (t *Table) IDField() string { return t.cfg.IDField }

// SearchDelay returns the debounce quiet period.
func (t *Table) SearchDelay() time.Duration {
	if t.search == nil {
		return 0
	}
	return t.search.Delay()
}

// Request returns the current request.
func (t *Table) Request() PageRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.req
}

// Load fetches the current request, from cache where possible. A response
// that arrives after the request changed is dropped and ErrStaleResponse
// is returned.
func (t *Table) Load(ctx context.Context) error {
	return t.load(ctx, false)
}

// Refresh refetches the current request, bypassing cached results. It is
// the only way to retry after a fetch error.
func (t *Table) Refresh(ctx context.Context) error {
	return t.load(ctx, true)
}

func (t *Table) load(ctx context.Context, force bool) error {
	t.loadPrefs(ctx)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return context.Canceled
	}
	req := t.req
	t.loading = true
	t.mu.Unlock()

	switch s := t.cfg.Fetch.(type) {
	case ImperativeFetch:
		res, err := t.cache.load(ctx, req, force)
		return t.apply(req, &res, false, false, err)
	case ReactiveQuery:
		return t.loadReactive(ctx, s.Hook, req, force)
	}
	return fmt.Errorf("%w: unknown fetch strategy %T", ErrInvalidConfig, t.cfg.Fetch)
}

// loadReactive renders through the hook until it has data for req that is
// not a placeholder, or until the hook reports an error.
func (t *Table) loadReactive(ctx context.Context, hook QueryHook, req PageRequest, force bool) error {
	st := hook(req)
	if force && st.Refetch != nil {
		st.Refetch()
		st = hook(req)
	}
	for {
		inflight := st.Done != nil
		if err := t.apply(req, st.Data, st.IsPlaceholder, inflight, st.Err); err != nil || !inflight {
			return err
		}
		if st.Data != nil && !st.IsPlaceholder && !force {
			t.watch(hook, req, st.Done)
			return nil
		}
		select {
		case <-st.Done:
		case <-ctx.Done():
			t.apply(req, nil, false, false, context.Canceled)
			return ctx.Err()
		}
		force = false
		st = hook(req)
	}
}

// apply publishes a fetch outcome for req. inflight keeps the table in a
// loading state while more data is expected.
func (t *Table) apply(req PageRequest, res *PageResult, placeholder, inflight bool, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if req.Key() != t.req.Key() {
		t.log.Debug("discarding stale response", "request", req.Key(), "current", t.req.Key())
		return ErrStaleResponse
	}
	if errors.Is(err, context.Canceled) {
		// The caller went away. The table keeps what it showed before and
		// the next Load fetches again.
		t.loading = false
		t.searching = false
		return err
	}
	if err != nil {
		t.err = &FetchError{Request: req, Err: err}
		t.loading = false
		t.searching = false
		t.log.Warn("table fetch failed", "request", req.Key(), "error", err)
		return t.err
	}
	if res != nil {
		t.result = res
		t.placeholder = placeholder
		t.err = nil
	}
	t.loading = inflight
	if !inflight {
		t.searching = false
		t.clampFocusLocked()
	}
	return nil
}

// kick loads in the background after a state change the table made on
// its own.
func (t *Table) kick() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		if err := t.Load(t.bg); err == nil && t.cfg.OnUpdate != nil {
			t.cfg.OnUpdate(t.View())
		}
	}()
}

// watch publishes a background revalidation once it settles.
func (t *Table) watch(hook QueryHook, req PageRequest, done <-chan struct{}) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		select {
		case <-done:
		case <-t.bg.Done():
			return
		}
		st := hook(req)
		if err := t.apply(req, st.Data, st.IsPlaceholder, false, st.Err); err == nil && t.cfg.OnUpdate != nil {
			t.cfg.OnUpdate(t.View())
		}
	}()
}

// setRequestLocked re-reads the URL and reports whether the request
// changed. A changed request drops the previous error and row focus.
func (t *Table) setRequestLocked() bool {
	next := t.url.Request()
	if next.Key() == t.req.Key() {
		return false
	}
	t.req = next
	t.err = nil
	t.focus = -1
	return true
}

// Sync rebinds the table to the state of a new host request, e.g. the
// query string of the next HTTP request for the same mount. Reports
// whether the request changed.
func (t *Table) Sync(port StatePort) bool {
	if !t.cfg.Options.EnableURLState || port == nil {
		return false
	}
	t.mu.Lock()
	t.url = NewURLState(port, t.cfg.Defaults, t.cfg.Case)
	changed := t.setRequestLocked()
	t.url.Write(t.req)
	search := t.req.Search
	t.mu.Unlock()

	if t.search != nil && t.search.Committed() != search {
		t.search.Reset(search)
	}
	return changed
}

// SetPage moves to page p (clamped to 1).
func (t *Table) SetPage(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url.SetPage(p)
	t.setRequestLocked()
}

// NextPage advances when the current pagination reports a next page.
func (t *Table) NextPage() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.paginationLocked()
	if !p.HasNextPage {
		return false
	}
	t.url.SetPage(p.Page + 1)
	return t.setRequestLocked()
}

// PrevPage goes back when the current pagination reports a previous page.
func (t *Table) PrevPage() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.paginationLocked()
	if !p.HasPreviousPage {
		return false
	}
	t.url.SetPage(p.Page - 1)
	return t.setRequestLocked()
}

// SetPageSize changes the page size and returns to page 1.
func (t *Table) SetPageSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > MaxPageSize {
		n = MaxPageSize
	}
	t.url.SetPageSize(n)
	t.setRequestLocked()
}

// TypeSearch records a keystroke. The value is committed after the quiet
// period; an empty value commits immediately.
func (t *Table) TypeSearch(value string) {
	if t.search == nil {
		return
	}
	t.search.Input(value)
}

// ClearSearch empties the search box and commits at once.
func (t *Table) ClearSearch() {
	t.TypeSearch("")
}

// CommitSearch commits pending search input now.
func (t *Table) CommitSearch() {
	if t.search == nil {
		return
	}
	t.search.Flush()
}

// commitSearch is the debouncer callback.
func (t *Table) commitSearch(q string) {
	t.mu.Lock()
	t.url.SetSearch(q)
	changed := t.setRequestLocked()
	if changed {
		t.searching = true
	}
	t.mu.Unlock()

	if changed {
		t.kick()
	}
}

// sortableField resolves a column id to its sort field.
func (t *Table) sortableField(columnID string) (string, error) {
	c, ok := t.columns[columnID]
	if !ok || !c.Sortable {
		return "", fmt.Errorf("%w: %q is not sortable", ErrUnknownColumn, columnID)
	}
	if c.Field != "" {
		return c.Field, nil
	}
	return c.ID, nil
}

// SetSort sorts by a column and returns to page 1.
func (t *Table) SetSort(columnID string, order SortOrder) error {
	field, err := t.sortableField(columnID)
	if err != nil {
		return err
	}
	if order != SortDesc {
		order = SortAsc
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url.SetSort(field, order)
	t.setRequestLocked()
	return nil
}

// ToggleSort sorts ascending by a new column or flips the direction of
// the current one.
func (t *Table) ToggleSort(columnID string) error {
	field, err := t.sortableField(columnID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	order := SortAsc
	if t.req.SortBy == field {
		order = t.req.SortOrder.Flip()
	}
	t.url.SetSort(field, order)
	t.setRequestLocked()
	return nil
}

// SetFilter sets a declared domain filter. The filter's sentinel or ""
// clears it. Returns to page 1.
func (t *Table) SetFilter(key, value string) error {
	if !t.filterSet[key] {
		return fmt.Errorf("%w: filter %q", ErrUnknownColumn, key)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url.SetFilter(key, value)
	t.setRequestLocked()
	return nil
}

// SetDateRange sets or (with nil) clears the date filter. No-op when the
// date filter is disabled.
func (t *Table) SetDateRange(dr *DateRange) {
	if !t.cfg.Options.EnableDateFilter {
		return
	}
	if dr.IsZero() {
		dr = nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url.SetDateRange(dr)
	t.setRequestLocked()
}

// SetColumnVisible shows or hides a hideable column and persists the
// choice when the table has a preferences id.
func (t *Table) SetColumnVisible(ctx context.Context, columnID string, visible bool) error {
	if !t.cfg.Options.EnableColumnVisibility {
		return nil
	}
	c, ok := t.columns[columnID]
	if !ok || !c.Hideable {
		return fmt.Errorf("%w: %q cannot be hidden", ErrUnknownColumn, columnID)
	}

	t.mu.Lock()
	hidden := t.url.HiddenColumns()
	idx := slices.Index(hidden, columnID)
	switch {
	case visible && idx >= 0:
		hidden = slices.Delete(hidden, idx, idx+1)
	case !visible && idx < 0:
		hidden = append(hidden, columnID)
	}
	t.url.SetHiddenColumns(hidden)
	prefs := t.prefsLocked()
	t.mu.Unlock()

	return t.savePrefs(ctx, prefs)
}

// SetColumnWidth records a resized column width.
func (t *Table) SetColumnWidth(ctx context.Context, columnID string, width int) error {
	if _, ok := t.columns[columnID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, columnID)
	}
	if width < 0 {
		width = 0
	}
	t.mu.Lock()
	if width == 0 {
		delete(t.widths, columnID)
	} else {
		t.widths[columnID] = width
	}
	prefs := t.prefsLocked()
	t.mu.Unlock()

	return t.savePrefs(ctx, prefs)
}

func (t *Table) prefsLocked() ColumnPrefs {
	p := ColumnPrefs{Hidden: t.url.HiddenColumns()}
	if len(t.widths) > 0 {
		p.Widths = make(map[string]int, len(t.widths))
		for k, v := range t.widths {
			p.Widths[k] = v
		}
	}
	return p
}

func (t *Table) savePrefs(ctx context.Context, prefs ColumnPrefs) error {
	id := t.cfg.Options.ColumnResizingTableID
	if t.cfg.Prefs == nil || id == "" {
		return nil
	}
	if err := t.cfg.Prefs.Save(ctx, id, prefs); err != nil {
		return fmt.Errorf("save column prefs: %w", err)
	}
	return nil
}

// loadPrefs applies persisted widths and hidden columns once. Hidden
// columns in the URL win over stored ones.
func (t *Table) loadPrefs(ctx context.Context) {
	id := t.cfg.Options.ColumnResizingTableID
	t.mu.Lock()
	if t.prefsLoaded || t.cfg.Prefs == nil || id == "" {
		t.mu.Unlock()
		return
	}
	t.prefsLoaded = true
	t.mu.Unlock()

	prefs, err := t.cfg.Prefs.Load(ctx, id)
	if err != nil {
		t.log.Warn("load column prefs", "table", id, "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for col, w := range prefs.Widths {
		if _, ok := t.columns[col]; ok && w > 0 {
			t.widths[col] = w
		}
	}
	if t.cfg.Options.EnableColumnVisibility && len(prefs.Hidden) > 0 && len(t.url.HiddenColumns()) == 0 {
		var hidden []string
		for _, col := range prefs.Hidden {
			if c, ok := t.columns[col]; ok && c.Hideable {
				hidden = append(hidden, col)
			}
		}
		t.url.SetHiddenColumns(hidden)
	}
}

// Select adds a row to the selection.
func (t *Table) Select(id RowID) error {
	return t.withSelection(func(s *SelectionTracker) { s.Select(id) })
}

// Deselect removes a row from the selection.
func (t *Table) Deselect(id RowID) error {
	return t.withSelection(func(s *SelectionTracker) { s.Deselect(id) })
}

// ToggleRow flips one row's selection.
func (t *Table) ToggleRow(id RowID) error {
	return t.withSelection(func(s *SelectionTracker) { s.Toggle(id) })
}

// ClickRow handles a click on a row body. It toggles selection only when
// click-to-select is enabled; otherwise it just moves focus.
func (t *Table) ClickRow(id RowID) error {
	t.mu.Lock()
	for i, row := range t.rowsLocked() {
		if IDOf(row, t.cfg.IDField) == id {
			t.focus = i
			break
		}
	}
	t.mu.Unlock()

	if !t.cfg.Options.EnableClickRowSelect {
		return nil
	}
	return t.ToggleRow(id)
}

// ToggleAllOnPage drives the header checkbox: when every row on the page
// is selected it deselects them, otherwise it selects the rest. Rows on
// other pages keep their state. Returns the new header state.
func (t *Table) ToggleAllOnPage() (CheckState, error) {
	var state CheckState
	err := t.withSelection(func(s *SelectionTracker) {
		ids := t.pageIDsLocked()
		if s.HeaderState(ids) == Checked {
			s.DeselectAllOnPage(ids)
		} else {
			s.SelectAllOnPage(ids)
		}
		state = s.HeaderState(ids)
	})
	return state, err
}

// ResetSelection clears the selection. Nothing else clears it.
func (t *Table) ResetSelection() error {
	return t.withSelection(func(s *SelectionTracker) { s.Clear() })
}

// Selection summarizes the selection against the current page.
func (t *Table) Selection() (SelectionSummary, error) {
	var sum SelectionSummary
	err := t.withSelection(func(s *SelectionTracker) {
		sum = s.Summary(t.rowsLocked(), t.cfg.IDField)
	})
	return sum, err
}

func (t *Table) withSelection(fn func(*SelectionTracker)) error {
	if t.selection == nil {
		return ErrSelectionDisabled
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.selection)
	return nil
}

// Keys understood by KeyDown.
const (
	KeyArrowUp   = "ArrowUp"
	KeyArrowDown = "ArrowDown"
	KeyHome      = "Home"
	KeyEnd       = "End"
	KeySpace     = " "
	KeyPageUp    = "PageUp"
	KeyPageDown  = "PageDown"
)

// KeyDown applies keyboard navigation and reports whether the key was
// handled. Page keys change the request; call Load afterwards.
func (t *Table) KeyDown(key string) bool {
	if !t.cfg.Options.EnableKeyboardNavigation {
		return false
	}
	switch key {
	case KeyPageDown:
		return t.NextPage()
	case KeyPageUp:
		return t.PrevPage()
	case KeySpace, "Space", "Spacebar":
		t.mu.Lock()
		rows := t.rowsLocked()
		if t.selection == nil || t.focus < 0 || t.focus >= len(rows) {
			t.mu.Unlock()
			return false
		}
		t.selection.Toggle(IDOf(rows[t.focus], t.cfg.IDField))
		t.mu.Unlock()
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.rowsLocked())
	if n == 0 {
		return false
	}
	switch key {
	case KeyArrowDown:
		if t.focus < n-1 {
			t.focus++
		}
	case KeyArrowUp:
		if t.focus > 0 {
			t.focus--
		} else if t.focus < 0 {
			t.focus = 0
		}
	case KeyHome:
		t.focus = 0
	case KeyEnd:
		t.focus = n - 1
	default:
		return false
	}
	return true
}

func (t *Table) clampFocusLocked() {
	if n := len(t.rowsLocked()); t.focus >= n {
		t.focus = n - 1
	}
}

func (t *Table) rowsLocked() []Row {
	if t.result == nil {
		return nil
	}
	return t.result.Data
}

func (t *Table) pageIDsLocked() []RowID {
	rows := t.rowsLocked()
	ids := make([]RowID, 0, len(rows))
	for _, row := range rows {
		if id := IDOf(row, t.cfg.IDField); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *Table) paginationLocked() PaginationInfo {
	if t.result == nil {
		return NewPaginationInfo(t.req.Page, t.req.PageSize, 0)
	}
	return t.result.Pagination.Normalize()
}

// ExportFilename names an export of this table taken now.
func (t *Table) ExportFilename(format Format) string {
	entity := "export"
	if t.cfg.Export != nil {
		entity = t.cfg.Export.EntityName
	}
	return Filename(entity, format, t.clock.Now())
}

// ExportPage writes the rows already on screen. No fetch is made.
func (t *Table) ExportPage(w io.Writer, format Format) (int64, error) {
	desc, err := t.exportDescriptor()
	if err != nil {
		return 0, &ExportError{Scope: ScopePage, Format: format, Err: err}
	}
	t.mu.Lock()
	rows := slices.Clone(t.rowsLocked())
	t.mu.Unlock()

	n, err := WriteExport(w, format, desc, rows)
	if err != nil {
		return 0, &ExportError{Scope: ScopePage, Format: format, Err: err}
	}
	t.log.Info("exported page", "entity", desc.EntityName, "format", format, "rows", len(rows), "size", humanize.Bytes(uint64(n)))
	return n, nil
}

// ExportAll fetches every row matching the current search, sort, filters
// and date range, then writes the file. Cancelling ctx stops fetching
// and nothing is written.
func (t *Table) ExportAll(ctx context.Context, w io.Writer, format Format) (int64, error) {
	desc, err := t.exportDescriptor()
	if err != nil {
		return 0, &ExportError{Scope: ScopeAll, Format: format, Err: err}
	}
	if t.bulk == nil {
		return 0, &ExportError{Scope: ScopeAll, Format: format, Err: ErrNoBulkFetch}
	}

	req := t.Request()
	start := t.clock.Now()
	rows, err := t.bulk(ctx, req)
	if err != nil {
		return 0, &ExportError{Scope: ScopeAll, Format: format, Err: err}
	}

	n, err := WriteExport(w, format, desc, rows)
	if err != nil {
		return 0, &ExportError{Scope: ScopeAll, Format: format, Err: err}
	}
	t.log.Info("exported dataset",
		"entity", desc.EntityName,
		"format", format,
		"rows", humanize.Comma(int64(len(rows))),
		"size", humanize.Bytes(uint64(n)),
		"duration", t.clock.Now().Sub(start),
	)
	return n, nil
}

func (t *Table) exportDescriptor() (ExportDescriptor, error) {
	if !t.cfg.Options.EnableExport || t.cfg.Export == nil {
		return ExportDescriptor{}, ErrExportDisabled
	}
	return *t.cfg.Export, nil
}

// Close stops pending search commits and waits for background loads.
func (t *Table) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	if t.search != nil {
		t.search.Stop()
	}
	t.cancel()
	t.wg.Wait()
}
