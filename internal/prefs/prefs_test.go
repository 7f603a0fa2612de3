package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/JonMunkholm/votedesk/internal/clock"
	"github.com/JonMunkholm/votedesk/internal/datatable"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return New(db, fake), mock
}

func TestLoad(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WithArgs("ann", "admin-users").
		WillReturnRows(sqlmock.NewRows([]string{"prefs"}).
			AddRow(`{"widths":{"name":220},"hidden":["email"]}`))

	p, err := s.ForOwner("ann").Load(context.Background(), "admin-users")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Widths["name"] != 220 || !slices.Equal(p.Hidden, []string{"email"}) {
		t.Errorf("Load() = %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLoadMissingIsZero(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WithArgs("", "admin-users").
		WillReturnRows(sqlmock.NewRows([]string{"prefs"}))

	p, err := s.Load(context.Background(), "admin-users")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Widths != nil || p.Hidden != nil {
		t.Errorf("Load() = %+v, want zero", p)
	}
}

func TestLoadErrors(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).WillReturnError(boom)
	if _, err := s.Load(context.Background(), "t"); !errors.Is(err, boom) {
		t.Errorf("Load() err = %v, want %v", err, boom)
	}

	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"prefs"}).AddRow(`{not json`))
	if _, err := s.Load(context.Background(), "t"); err == nil {
		t.Error("Load() of corrupt prefs succeeded")
	}
}

func TestSave(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(saveQuery)).
		WithArgs("", "admin-users", `{"widths":{"name":180},"hidden":["phone"]}`, "2024-05-01T12:00:00Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Save(context.Background(), "admin-users", datatable.ColumnPrefs{
		Widths: map[string]int{"name": 180},
		Hidden: []string{"phone"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS column_prefs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "prefs", "prefs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	want := datatable.ColumnPrefs{Widths: map[string]int{"name": 200}, Hidden: []string{"email"}}
	if err := s.ForOwner("ann").Save(ctx, "admin-users", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want.Hidden = []string{"email", "phone"}
	if err := s.ForOwner("ann").Save(ctx, "admin-users", want); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, err := s.ForOwner("ann").Load(ctx, "admin-users")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Widths["name"] != 200 || !slices.Equal(got.Hidden, want.Hidden) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	other, err := s.ForOwner("bob").Load(ctx, "admin-users")
	if err != nil {
		t.Fatalf("Load(bob): %v", err)
	}
	if other.Hidden != nil {
		t.Errorf("owners share prefs: %+v", other)
	}
}

func TestTableUsesStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	newTable := func() *datatable.Table {
		tbl, err := datatable.New(datatable.Config{
			Columns: []datatable.Column{
				{ID: "id", Field: "id"},
				{ID: "email", Field: "email", Hideable: true},
			},
			Fetch: datatable.ImperativeFetch{Fetch: func(ctx context.Context, req datatable.PageRequest) (datatable.PageResult, error) {
				return datatable.PageResult{Data: []datatable.Row{}, Pagination: datatable.NewPaginationInfo(req.Page, req.PageSize, 0)}, nil
			}},
			Options: datatable.Options{EnableColumnVisibility: true, ColumnResizingTableID: "admin-users"},
			Prefs:   s,
		})
		if err != nil {
			t.Fatalf("datatable.New: %v", err)
		}
		return tbl
	}

	first := newTable()
	defer first.Close()
	if err := first.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := first.SetColumnVisible(ctx, "email", false); err != nil {
		t.Fatalf("SetColumnVisible: %v", err)
	}

	second := newTable()
	defer second.Close()
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if second.View().ShowsColumn("email") {
		t.Error("hidden column restored as visible")
	}
}
