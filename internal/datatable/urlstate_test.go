package datatable

import (
	"net/url"
	"testing"
)

func newTestURLState(raw string) (*URLState, *QueryPort) {
	q, _ := url.ParseQuery(raw)
	port := NewQueryPort(q)
	defaults := URLDefaults{
		PageSize:  20,
		SortBy:    "createdAt",
		SortOrder: SortDesc,
		Filters:   []FilterDefault{{Key: "status", Sentinel: "all"}},
	}
	return NewURLState(port, defaults, CaseConfig{}), port
}

func TestURLState_ReadsDefaults(t *testing.T) {
	s, _ := newTestURLState("")
	req := s.Request()

	if req.Page != 1 || req.PageSize != 20 {
		t.Errorf("page/size = %d/%d, want 1/20", req.Page, req.PageSize)
	}
	if req.SortBy != "createdAt" || req.SortOrder != SortDesc {
		t.Errorf("sort = %s %s, want createdAt desc", req.SortBy, req.SortOrder)
	}
	if req.Search != "" || req.DateRange != nil || req.Filters != nil {
		t.Errorf("unexpected request state: %+v", req)
	}
}

func TestURLState_ReadsURL(t *testing.T) {
	s, _ := newTestURLState("page=3&pageSize=50&search=bob&sortBy=name&sortOrder=asc&status=active&from_date=2024-01-01")
	req := s.Request()

	if req.Page != 3 || req.PageSize != 50 || req.Search != "bob" {
		t.Errorf("got %+v", req)
	}
	if req.SortBy != "name" || req.SortOrder != SortAsc {
		t.Errorf("sort = %s %s, want name asc", req.SortBy, req.SortOrder)
	}
	if req.Filters["status"] != "active" {
		t.Errorf("status filter = %q, want active", req.Filters["status"])
	}
	if req.DateRange == nil || req.DateRange.From != "2024-01-01" || req.DateRange.To != "" {
		t.Errorf("date range = %+v", req.DateRange)
	}
}

func TestURLState_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		raw      string
		wantPage int
		wantSize int
		wantOrd  SortOrder
	}{
		{"page=abc", 1, 20, SortDesc},
		{"page=-2", 1, 20, SortDesc},
		{"pageSize=0", 1, 20, SortDesc},
		{"pageSize=100000", 1, 20, SortDesc},
		{"sortOrder=sideways", 1, 20, SortDesc},
		{"limit=30", 1, 30, SortDesc},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s, _ := newTestURLState(tt.raw)
			req := s.Request()
			if req.Page != tt.wantPage || req.PageSize != tt.wantSize || req.SortOrder != tt.wantOrd {
				t.Errorf("got page=%d size=%d order=%s, want %d %d %s",
					req.Page, req.PageSize, req.SortOrder, tt.wantPage, tt.wantSize, tt.wantOrd)
			}
		})
	}
}

func TestURLState_ChangesResetPage(t *testing.T) {
	tests := []struct {
		name   string
		change func(s *URLState)
	}{
		{"search", func(s *URLState) { s.SetSearch("x") }},
		{"sort", func(s *URLState) { s.SetSort("name", SortAsc) }},
		{"filter", func(s *URLState) { s.SetFilter("status", "banned") }},
		{"filter sentinel", func(s *URLState) { s.SetFilter("status", "all") }},
		{"date range", func(s *URLState) { s.SetDateRange(&DateRange{To: "2024-03-01"}) }},
		{"page size", func(s *URLState) { s.SetPageSize(50) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, port := newTestURLState("page=5")
			tt.change(s)
			if got := s.Page(); got != 1 {
				t.Errorf("Page = %d, want 1", got)
			}
			if _, ok := port.Get(ParamPage); ok {
				t.Error("page parameter still present")
			}
		})
	}
}

func TestURLState_HiddenColumnsKeepPage(t *testing.T) {
	s, _ := newTestURLState("page=5")
	s.SetHiddenColumns([]string{"phone", "email"})

	if got := s.Page(); got != 5 {
		t.Errorf("Page = %d, want 5", got)
	}
	hidden := s.HiddenColumns()
	if len(hidden) != 2 || hidden[0] != "email" || hidden[1] != "phone" {
		t.Errorf("HiddenColumns = %v, want [email phone]", hidden)
	}
}

func TestURLState_SentinelRemovesFilter(t *testing.T) {
	s, port := newTestURLState("status=active")

	s.SetFilter("status", "all")
	if _, ok := port.Get("status"); ok {
		t.Error("sentinel value left status in the URL")
	}
	if got := s.Filter("status"); got != "" {
		t.Errorf("Filter = %q, want empty", got)
	}

	s.SetFilter("status", "banned")
	s.SetFilter("status", "")
	if _, ok := port.Get("status"); ok {
		t.Error("empty value left status in the URL")
	}
}

func TestURLState_SentinelInURLReadsAsUnset(t *testing.T) {
	s, _ := newTestURLState("status=all")
	if f := s.Request().Filters; f != nil {
		t.Errorf("Filters = %v, want none", f)
	}
}

func TestURLState_DefaultsNotWritten(t *testing.T) {
	s, port := newTestURLState("")

	s.SetPage(1)
	s.SetPageSize(20)
	s.SetSort("createdAt", SortDesc)
	s.SetSearch("   ")

	if enc := port.Encode(); enc != "" {
		t.Errorf("Encode = %q, want empty", enc)
	}
	if port.Changed() {
		t.Error("Changed = true for a canonical URL")
	}
}

func TestURLState_CanonicalizesLimitAlias(t *testing.T) {
	s, port := newTestURLState("limit=30&page=2")
	s.Write(s.Request())

	if got := port.Encode(); got != "page=2&pageSize=30" {
		t.Errorf("Encode = %q, want page=2&pageSize=30", got)
	}
	if !port.Changed() {
		t.Error("Changed = false after rewriting the alias")
	}
}

func TestURLState_CaseConversion(t *testing.T) {
	q, _ := url.ParseQuery("sortBy=created_at&sortOrder=asc&payment_status=paid")
	port := NewQueryPort(q)
	s := NewURLState(port, URLDefaults{
		Filters: []FilterDefault{{Key: "paymentStatus", Sentinel: "all"}},
	}, CaseConfig{URLFormat: CaseSnake})

	req := s.Request()
	if req.SortBy != "createdAt" {
		t.Errorf("SortBy = %q, want createdAt", req.SortBy)
	}
	if req.Filters["paymentStatus"] != "paid" {
		t.Errorf("paymentStatus = %q, want paid", req.Filters["paymentStatus"])
	}

	s.SetSort("amountPaid", SortDesc)
	if v, _ := port.Get(ParamSortBy); v != "amount_paid" {
		t.Errorf("sortBy param = %q, want amount_paid", v)
	}
}

func TestQueryPort_DoesNotMutateSource(t *testing.T) {
	src := url.Values{"page": {"2"}}
	port := NewQueryPort(src)
	port.Set("page", "3")
	port.Del("page")

	if src.Get("page") != "2" {
		t.Errorf("source mutated: %v", src)
	}
}

func TestMemoryPort(t *testing.T) {
	p := NewMemoryPort()
	if _, ok := p.Get("a"); ok {
		t.Fatal("empty port reported a value")
	}
	p.Set("a", "1")
	if v, ok := p.Get("a"); !ok || v != "1" {
		t.Errorf("Get = %q, %v, want 1, true", v, ok)
	}
	p.Del("a")
	if _, ok := p.Get("a"); ok {
		t.Error("Del left the value")
	}
}
