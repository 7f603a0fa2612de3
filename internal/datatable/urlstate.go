package datatable

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// StatePort is the host's key/value view of the query string. Get reports
// whether the key is present; Del removes it.
type StatePort interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Del(key string)
}

// MemoryPort is a StatePort that lives only in memory. Tables with URL
// state disabled use it so the synchronizer logic stays identical.
type MemoryPort struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryPort returns an empty MemoryPort.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{values: make(map[string]string)}
}

func (p *MemoryPort) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *MemoryPort) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

func (p *MemoryPort) Del(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
}

// QueryPort adapts url.Values to a StatePort and remembers whether any
// write changed the encoded query, so the host knows to replace (not push)
// the browser's history entry.
type QueryPort struct {
	mu       sync.Mutex
	values   url.Values
	original string
}

// NewQueryPort copies q so the caller's request values are never mutated.
func NewQueryPort(q url.Values) *QueryPort {
	values := url.Values{}
	for k, vs := range q {
		values[k] = append([]string(nil), vs...)
	}
	return &QueryPort{values: values, original: values.Encode()}
}

func (p *QueryPort) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vs, ok := p.values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (p *QueryPort) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values.Set(key, value)
}

func (p *QueryPort) Del(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values.Del(key)
}

// Encode returns the canonical query string.
func (p *QueryPort) Encode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values.Encode()
}

// Changed reports whether the query differs from the one the port was
// created with.
func (p *QueryPort) Changed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values.Encode() != p.original
}

// Query parameter names. "limit" is accepted as an alias for pageSize on
// read; writes always use pageSize.
const (
	ParamPage      = "page"
	ParamPageSize  = "pageSize"
	ParamLimit     = "limit"
	ParamSearch    = "search"
	ParamSortBy    = "sortBy"
	ParamSortOrder = "sortOrder"
	ParamFromDate  = "from_date"
	ParamToDate    = "to_date"
	ParamHidden    = "hidden"
)

// FilterDefault describes one domain filter and its "everything" sentinel.
// Setting the filter to Sentinel (or "") removes it from the URL.
type FilterDefault struct {
	Key      string
	Sentinel string
}

// URLDefaults are the values used when the URL does not carry a parameter.
type URLDefaults struct {
	PageSize  int
	SortBy    string
	SortOrder SortOrder
	Filters   []FilterDefault
}

// URLState binds table state to query parameters. Reads parse the port
// first and fall back to defaults; writes keep the URL canonical by never
// writing default values.
type URLState struct {
	port     StatePort
	defaults URLDefaults
	cases    CaseConfig
	filters  map[string]FilterDefault
}

// NewURLState creates a synchronizer over port.
func NewURLState(port StatePort, defaults URLDefaults, cases CaseConfig) *URLState {
	if defaults.PageSize <= 0 {
		defaults.PageSize = DefaultPageSize
	}
	if defaults.SortOrder == "" {
		defaults.SortOrder = SortAsc
	}
	filters := make(map[string]FilterDefault, len(defaults.Filters))
	for _, f := range defaults.Filters {
		filters[f.Key] = f
	}
	return &URLState{port: port, defaults: defaults, cases: cases, filters: filters}
}

// Port returns the underlying StatePort.
func (s *URLState) Port() StatePort { return s.port }

// Page returns the page parameter, or 1 when absent or invalid.
func (s *URLState) Page() int {
	return s.positiveInt(ParamPage, 1)
}

// SetPage writes the page parameter. Page 1 is the default and is removed.
func (s *URLState) SetPage(p int) {
	if p <= 1 {
		s.port.Del(ParamPage)
		return
	}
	s.port.Set(ParamPage, strconv.Itoa(p))
}

// PageSize returns pageSize (or its limit alias), falling back to the
// default when absent, invalid or above MaxPageSize.
func (s *URLState) PageSize() int {
	for _, key := range []string{ParamPageSize, ParamLimit} {
		if n := s.positiveInt(key, 0); n > 0 && n <= MaxPageSize {
			return n
		}
	}
	return s.defaults.PageSize
}

// SetPageSize writes the page size and resets the page.
func (s *URLState) SetPageSize(n int) {
	s.port.Del(ParamLimit)
	if n <= 0 || n == s.defaults.PageSize {
		s.port.Del(ParamPageSize)
	} else {
		s.port.Set(ParamPageSize, strconv.Itoa(n))
	}
	s.SetPage(1)
}

// Search returns the committed search text.
func (s *URLState) Search() string {
	v, _ := s.port.Get(ParamSearch)
	return v
}

// SetSearch writes the search text and resets the page.
func (s *URLState) SetSearch(q string) {
	q = strings.TrimSpace(q)
	if q == "" {
		s.port.Del(ParamSearch)
	} else {
		s.port.Set(ParamSearch, q)
	}
	s.SetPage(1)
}

// Sort returns the sort column (internal spelling) and direction.
func (s *URLState) Sort() (string, SortOrder) {
	by, ok := s.port.Get(ParamSortBy)
	if !ok || by == "" {
		by = s.defaults.SortBy
	} else {
		by = s.cases.FromURL(by)
	}
	order := s.defaults.SortOrder
	if raw, ok := s.port.Get(ParamSortOrder); ok {
		if o, valid := ParseSortOrder(raw); valid {
			order = o
		}
	}
	return by, order
}

// SetSort writes the sort and resets the page. The default sort is
// removed from the URL.
func (s *URLState) SetSort(by string, order SortOrder) {
	if by == "" || (by == s.defaults.SortBy && order == s.defaults.SortOrder) {
		s.port.Del(ParamSortBy)
		s.port.Del(ParamSortOrder)
	} else {
		s.port.Set(ParamSortBy, s.cases.ToURL(by))
		s.port.Set(ParamSortOrder, string(order))
	}
	s.SetPage(1)
}

// Filter returns the value of a domain filter, or "" when unset.
func (s *URLState) Filter(key string) string {
	v, ok := s.port.Get(s.cases.ToURL(key))
	if !ok {
		return ""
	}
	if f, known := s.filters[key]; known && v == f.Sentinel {
		return ""
	}
	return v
}

// Filters returns every declared filter that is set.
func (s *URLState) Filters() map[string]string {
	out := make(map[string]string)
	for key := range s.filters {
		if v := s.Filter(key); v != "" {
			out[key] = v
		}
	}
	return out
}

// SetFilter writes a filter and resets the page. The sentinel value and
// the empty string both remove the parameter.
func (s *URLState) SetFilter(key, value string) {
	param := s.cases.ToURL(key)
	if f, known := s.filters[key]; value == "" || (known && value == f.Sentinel) {
		s.port.Del(param)
	} else {
		s.port.Set(param, value)
	}
	s.SetPage(1)
}

// DateRange returns the from/to filter, or nil when neither is set.
func (s *URLState) DateRange() *DateRange {
	from, _ := s.port.Get(ParamFromDate)
	to, _ := s.port.Get(ParamToDate)
	dr := &DateRange{From: from, To: to}
	if dr.IsZero() {
		return nil
	}
	return dr
}

// SetDateRange writes the date range (nil clears it) and resets the page.
func (s *URLState) SetDateRange(dr *DateRange) {
	s.port.Del(ParamFromDate)
	s.port.Del(ParamToDate)
	if dr != nil {
		if dr.From != "" {
			s.port.Set(ParamFromDate, dr.From)
		}
		if dr.To != "" {
			s.port.Set(ParamToDate, dr.To)
		}
	}
	s.SetPage(1)
}

// HiddenColumns returns the ids of columns hidden through the URL.
func (s *URLState) HiddenColumns() []string {
	raw, ok := s.port.Get(ParamHidden)
	if !ok || raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, s.cases.FromURL(part))
		}
	}
	return out
}

// SetHiddenColumns writes the hidden column list. Visibility does not
// change the result set, so the page is kept.
func (s *URLState) SetHiddenColumns(ids []string) {
	if len(ids) == 0 {
		s.port.Del(ParamHidden)
		return
	}
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = s.cases.ToURL(id)
	}
	sort.Strings(sorted)
	s.port.Set(ParamHidden, strings.Join(sorted, ","))
}

// Request assembles the PageRequest the URL currently describes.
func (s *URLState) Request() PageRequest {
	by, order := s.Sort()
	req := PageRequest{
		Page:      s.Page(),
		PageSize:  s.PageSize(),
		Search:    s.Search(),
		SortBy:    by,
		SortOrder: order,
		DateRange: s.DateRange(),
	}
	if f := s.Filters(); len(f) > 0 {
		req.Filters = f
	}
	return req
}

// Write stores req in the port, keeping the URL canonical: the limit alias,
// default values and sentinel filters drop out.
func (s *URLState) Write(req PageRequest) {
	s.SetPageSize(req.PageSize)
	s.SetSearch(req.Search)
	s.SetSort(req.SortBy, req.SortOrder)
	for key := range s.filters {
		s.SetFilter(key, req.Filters[key])
	}
	s.SetDateRange(req.DateRange)
	s.SetPage(req.Page)
}

func (s *URLState) positiveInt(key string, fallback int) int {
	raw, ok := s.port.Get(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
