package store

import (
	"testing"
	"time"
)

func TestWhereBuilderEmpty(t *testing.T) {
	clause, args := NewWhereBuilder().Build()
	if clause != "" || args != nil {
		t.Errorf("Build() = %q, %v, want empty", clause, args)
	}
}

func TestWhereBuilderAdd(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("status", "active")
	wb.Add("role", "")
	clause, args := wb.Build()

	if clause != ` WHERE "status" = $1` {
		t.Errorf("clause = %q", clause)
	}
	if len(args) != 1 || args[0] != "active" {
		t.Errorf("args = %v, want [active]", args)
	}
	if got := wb.NextArgIndex(); got != 2 {
		t.Errorf("NextArgIndex() = %d, want 2", got)
	}
}

func TestWhereBuilderSearchSharesArgument(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddSearch("  ann_50%  ", []string{"full_name", "email"})
	clause, args := wb.Build()

	want := ` WHERE ("full_name"::text ILIKE $1 OR "email"::text ILIKE $1)`
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 1 || args[0] != `%ann\_50\%%` {
		t.Errorf("args = %v", args)
	}
}

func TestWhereBuilderSearchSkipsBlank(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddSearch("   ", []string{"a"})
	wb.AddSearch("x", nil)
	if clause, _ := wb.Build(); clause != "" {
		t.Errorf("clause = %q, want empty", clause)
	}
}

func TestWhereBuilderDateRange(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	wb := NewWhereBuilder()
	wb.Add("status", "paid")
	wb.AddDateRange("created_at", from, to)
	clause, args := wb.Build()

	want := ` WHERE "status" = $1 AND "created_at" >= $2 AND "created_at" < $3`
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 3 {
		t.Fatalf("len(args) = %d, want 3", len(args))
	}
	if got := args[2].(time.Time); !got.Equal(to.AddDate(0, 0, 1)) {
		t.Errorf("upper bound = %v, want the day after %v", got, to)
	}
}

func TestWhereBuilderOpenDateBound(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddDateRange("created_at", time.Time{}, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	clause, args := wb.Build()
	if clause != ` WHERE "created_at" < $1` || len(args) != 1 {
		t.Errorf("Build() = %q, %v", clause, args)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"users", `"users"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
