package store

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

var usersSource = Source{
	Table:    "users",
	IDColumn: "id",
	Columns: []ColumnMap{
		{Field: "id", DBColumn: "id"},
		{Field: "name", DBColumn: "full_name"},
		{Field: "status", DBColumn: "status"},
		{Field: "createdAt", DBColumn: "created_at"},
	},
	SearchColumns: []string{"full_name", "email"},
	DateColumn:    "created_at",
	Filters:       []FilterColumn{{Key: "status", Column: "status", Sentinel: "all"}},
}

func TestBuildQuery(t *testing.T) {
	req := datatable.PageRequest{
		Page:      3,
		PageSize:  25,
		Search:    "ann",
		SortBy:    "name",
		SortOrder: datatable.SortDesc,
		Filters:   map[string]string{"status": "active"},
		DateRange: &datatable.DateRange{From: "2024-05-01", To: "2024-05-31"},
	}
	q, err := usersSource.BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	where := ` WHERE ("full_name"::text ILIKE $1 OR "email"::text ILIKE $1) AND "status" = $2 AND "created_at" >= $3 AND "created_at" < $4`
	if want := `SELECT COUNT(*) FROM "users"` + where; q.Count != want {
		t.Errorf("Count = %q\nwant %q", q.Count, want)
	}
	wantSelect := `SELECT "id", "full_name", "status", "created_at" FROM "users"` + where +
		` ORDER BY "full_name" DESC, "id" DESC LIMIT $5 OFFSET $6`
	if q.Select != wantSelect {
		t.Errorf("Select = %q\nwant %q", q.Select, wantSelect)
	}
	if len(q.CountArgs) != 4 {
		t.Errorf("len(CountArgs) = %d, want 4", len(q.CountArgs))
	}
	if len(q.SelectArgs) != 6 || q.SelectArgs[4] != 25 || q.SelectArgs[5] != 50 {
		t.Errorf("SelectArgs = %v, want limit 25 offset 50", q.SelectArgs)
	}
}

func TestBuildQuerySentinelAndFallbackSort(t *testing.T) {
	req := datatable.PageRequest{
		Page:      1,
		PageSize:  10,
		SortBy:    "nope",
		SortOrder: datatable.SortDesc,
		Filters:   map[string]string{"status": "all", "other": "x"},
		DateRange: &datatable.DateRange{From: "garbage"},
	}
	q, err := usersSource.BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if strings.Contains(q.Select, "WHERE") {
		t.Errorf("Select has a WHERE clause: %q", q.Select)
	}
	if !strings.Contains(q.Select, `ORDER BY "id" ASC LIMIT $1 OFFSET $2`) {
		t.Errorf("Select = %q, want fallback sort on first column", q.Select)
	}
}

func TestBuildQueryOrderTiebreak(t *testing.T) {
	noID := usersSource
	noID.IDColumn = ""

	tests := []struct {
		name string
		src  Source
		req  datatable.PageRequest
		want string
	}{
		{"ties broken by id", usersSource, datatable.PageRequest{Page: 2, PageSize: 100, SortBy: "status"},
			`ORDER BY "status" ASC, "id" ASC LIMIT`},
		{"tiebreak follows direction", usersSource, datatable.PageRequest{SortBy: "createdAt", SortOrder: datatable.SortDesc},
			`ORDER BY "created_at" DESC, "id" DESC LIMIT`},
		{"sorting by id needs no tiebreak", usersSource, datatable.PageRequest{SortBy: "id"},
			`ORDER BY "id" ASC LIMIT`},
		{"first column without IDColumn", noID, datatable.PageRequest{SortBy: "name"},
			`ORDER BY "full_name" ASC, "id" ASC LIMIT`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.src.BuildQuery(tt.req)
			if err != nil {
				t.Fatalf("BuildQuery: %v", err)
			}
			if !strings.Contains(q.Select, tt.want) {
				t.Errorf("Select = %q, want %q", q.Select, tt.want)
			}
		})
	}
}

func TestBuildQueryInvalidSource(t *testing.T) {
	_, err := Source{Table: "x"}.BuildQuery(datatable.PageRequest{})
	if !errors.Is(err, datatable.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestFetch(t *testing.T) {
	created := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	db := &fakeDB{
		total: 3,
		rows: [][]any{
			{[16]byte{1}, "Ann", "active", created},
			{[16]byte{2}, "Bob", "pending", created},
		},
	}
	s := New(db, nil)

	res, err := s.Fetcher(usersSource)(context.Background(), datatable.PageRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(res.Data))
	}
	if got := res.Data[0]["name"]; got != "Ann" {
		t.Errorf("name = %v, want Ann", got)
	}
	if got := res.Data[0]["id"]; got != "01000000-0000-0000-0000-000000000000" {
		t.Errorf("id = %v, want uuid string", got)
	}
	p := res.Pagination
	if p.Page != 2 || p.Total != 3 || p.TotalPages != 2 || p.HasNextPage || !p.HasPreviousPage {
		t.Errorf("Pagination = %+v", p)
	}
	if !db.rowsClosed {
		t.Error("rows were not closed")
	}
}

func TestFetchPastEndIsEmptyNotClamped(t *testing.T) {
	db := &fakeDB{total: 5}
	res, err := New(db, nil).Fetch(context.Background(), usersSource, datatable.PageRequest{Page: 9, PageSize: 5})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Data == nil || len(res.Data) != 0 {
		t.Errorf("Data = %v, want empty non-nil", res.Data)
	}
	if res.Pagination.Page != 9 || res.Pagination.HasNextPage {
		t.Errorf("Pagination = %+v, want page 9 without next", res.Pagination)
	}
	if db.queried {
		t.Error("select ran for a page past the end")
	}
}

func TestFetchErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := New(&fakeDB{countErr: boom}, nil).Fetch(context.Background(), usersSource, datatable.PageRequest{})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "count users") {
		t.Errorf("count err = %v", err)
	}

	_, err = New(&fakeDB{total: 1, queryErr: boom}, nil).Fetch(context.Background(), usersSource, datatable.PageRequest{})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "query users") {
		t.Errorf("query err = %v", err)
	}

	_, err = New(&fakeDB{total: 1, rows: [][]any{{"x"}}, rowsErr: boom}, nil).Fetch(context.Background(), usersSource, datatable.PageRequest{})
	if !errors.Is(err, boom) {
		t.Errorf("rows err = %v", err)
	}
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"numeric", pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, 123.45},
		{"null numeric", pgtype.Numeric{}, nil},
		{"text", pgtype.Text{String: "a", Valid: true}, "a"},
		{"null text", pgtype.Text{}, nil},
		{"timestamptz", pgtype.Timestamptz{Time: ts, Valid: true}, ts},
		{"int32", int32(7), int64(7)},
		{"passthrough", "x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeValue(tt.in); got != tt.want {
				t.Errorf("normalizeValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

type fakeDB struct {
	total    int64
	rows     [][]any
	countErr error
	queryErr error
	rowsErr  error

	queried    bool
	rowsClosed bool
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{total: f.total, err: f.countErr}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queried = true
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{db: f, idx: -1}, nil
}

type fakeRow struct {
	total int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.total
	return nil
}

type fakeRows struct {
	db  *fakeDB
	idx int
}

func (r *fakeRows) Close()                                       { r.db.rowsClosed = true }
func (r *fakeRows) Err() error                                   { return r.db.rowsErr }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Scan(dest ...any) error                       { return errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.db.rows)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.db.rows[r.idx], nil
}
