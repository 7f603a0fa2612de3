package entities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

func TestBuiltinDefinitions(t *testing.T) {
	for _, key := range []string{"users", "votes", "payments", "ranks", "participants"} {
		def, ok := Get(key)
		if !ok {
			t.Errorf("Get(%q) not found", key)
			continue
		}
		if err := def.Validate(); err != nil {
			t.Errorf("%s: Validate() = %v", key, err)
		}
		fetch := func(ctx context.Context, req datatable.PageRequest) (datatable.PageResult, error) {
			return datatable.PageResult{}, nil
		}
		tbl, err := datatable.New(def.TableConfig(fetch, datatable.NewQueryClient()))
		if err != nil {
			t.Errorf("%s: datatable.New = %v", key, err)
			continue
		}
		tbl.Close()
	}
}

func TestBuiltinFlags(t *testing.T) {
	tests := []struct {
		key       string
		selection bool
		fetch     FetchMode
	}{
		{"users", true, FetchReactive},
		{"payments", false, FetchReactive},
		{"ranks", false, FetchImperative},
		{"participants", true, FetchImperative},
	}
	for _, tt := range tests {
		def, _ := Get(tt.key)
		if def.Options.EnableRowSelection != tt.selection {
			t.Errorf("%s: EnableRowSelection = %v, want %v", tt.key, def.Options.EnableRowSelection, tt.selection)
		}
		if def.Fetch != tt.fetch {
			t.Errorf("%s: Fetch = %q, want %q", tt.key, def.Fetch, tt.fetch)
		}
	}
}

func TestDefinitionMappings(t *testing.T) {
	def, _ := Get("users")

	cc := def.CaseConfig()
	if cc.URLFormat != datatable.CaseCamel || cc.APIFormat != datatable.CaseSnake {
		t.Errorf("CaseConfig() = %+v", cc)
	}

	ud := def.URLDefaults()
	if ud.PageSize != 20 || ud.SortBy != "createdAt" || ud.SortOrder != datatable.SortDesc {
		t.Errorf("URLDefaults() = %+v", ud)
	}
	if len(ud.Filters) != 2 || ud.Filters[0] != (datatable.FilterDefault{Key: "status", Sentinel: "all"}) {
		t.Errorf("URLDefaults().Filters = %+v", ud.Filters)
	}

	src := def.StoreSource()
	if src.Table != "users" || src.DateColumn != "created_at" || src.IDColumn != "id" {
		t.Errorf("StoreSource() = %+v", src)
	}
	if src.Columns[1].Field != "name" || src.Columns[1].DBColumn != "full_name" {
		t.Errorf("StoreSource().Columns[1] = %+v", src.Columns[1])
	}
}

func TestExportDescriptorTransform(t *testing.T) {
	def, _ := Get("payments")
	desc := def.ExportDescriptor()
	if desc == nil {
		t.Fatal("ExportDescriptor() = nil")
	}
	if desc.EntityName != "payments" {
		t.Errorf("EntityName = %q", desc.EntityName)
	}

	paid := time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)
	rec := desc.Transform(datatable.Row{
		"reference": "PAY-1",
		"amount":    1234.567,
		"method":    "bank_transfer",
		"status":    "successful",
		"paidAt":    paid,
	})
	want := map[string]any{
		"Reference": "PAY-1",
		"Amount":    1234.57,
		"Method":    "Bank Transfer",
		"Status":    "Successful",
		"Paid At":   "2024-05-02 14:30",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("record[%q] = %v, want %v", k, rec[k], v)
		}
	}
	if _, ok := rec["Payer"]; ok {
		t.Error("missing field produced a value")
	}
}

func TestExportDescriptorDisabled(t *testing.T) {
	def, _ := Get("users")
	def.Options.EnableExport = false
	if def.ExportDescriptor() != nil {
		t.Error("ExportDescriptor() != nil with export disabled")
	}
}

func TestTableConfigStrategy(t *testing.T) {
	fetch := func(ctx context.Context, req datatable.PageRequest) (datatable.PageResult, error) {
		return datatable.PageResult{}, nil
	}

	users, _ := Get("users")
	cfg := users.TableConfig(fetch, datatable.NewQueryClient())
	if _, ok := cfg.Fetch.(datatable.ReactiveQuery); !ok {
		t.Errorf("users Fetch = %T, want ReactiveQuery", cfg.Fetch)
	}
	if cfg.BulkFetch == nil {
		t.Error("reactive config has no BulkFetch")
	}

	ranks, _ := Get("ranks")
	cfg = ranks.TableConfig(fetch, datatable.NewQueryClient())
	if _, ok := cfg.Fetch.(datatable.ImperativeFetch); !ok {
		t.Errorf("ranks Fetch = %T, want ImperativeFetch", cfg.Fetch)
	}
	if cfg.IDField != "name" {
		t.Errorf("ranks IDField = %q, want name", cfg.IDField)
	}
	if src := ranks.StoreSource(); src.IDColumn != "name" {
		t.Errorf("ranks StoreSource().IDColumn = %q, want name", src.IDColumn)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	doc := `
entities:
  - key: contests
    source: { table: contests }
    columns:
      - { id: title }
      - { id: endsAt, format: date }
    filters:
      - { key: contestStatus, sentinel: all }
    options: { export: true }
`
	defs, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("len(defs) = %d, want 1", len(defs))
	}
	d := defs[0]
	if d.IDField != "id" || d.Fetch != FetchImperative || d.Label != "contests" || d.Group != "Other" {
		t.Errorf("defaults not applied: %+v", d)
	}
	if c := d.Columns[1]; c.Field != "endsAt" || c.Header != "endsAt" || c.DBColumn != "ends_at" {
		t.Errorf("column defaults = %+v", c)
	}
	if f := d.Filters[0]; f.Column != "contest_status" || f.Label != "contestStatus" {
		t.Errorf("filter defaults = %+v", f)
	}
	if d.Export.EntityName != "contests" {
		t.Errorf("Export.EntityName = %q", d.Export.EntityName)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "entities:\n  - key: a\n    colour: red\n"},
		{"no columns", "entities:\n  - key: a\n    source: { table: a }\n"},
		{"no source", "entities:\n  - key: a\n    columns: [{ id: x }]\n"},
		{"bad fetch", "entities:\n  - key: a\n    fetch: eager\n    source: { table: a }\n    columns: [{ id: x }]\n"},
		{"bad format", "entities:\n  - key: a\n    source: { table: a }\n    columns: [{ id: x, format: roman }]\n"},
		{"bad case", "entities:\n  - key: a\n    case: { url: screaming }\n    source: { table: a }\n    columns: [{ id: x }]\n"},
		{"duplicate", "entities:\n  - { key: a, source: { table: a }, columns: [{ id: x }] }\n  - { key: a, source: { table: a }, columns: [{ id: x }] }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.doc)); err == nil {
				t.Error("Parse() succeeded, want error")
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	defs, err := Parse(strings.NewReader(""))
	if err != nil || defs != nil {
		t.Errorf("Parse(\"\") = %v, %v, want nil, nil", defs, err)
	}
}

func TestLoadFileReplacesBuiltin(t *testing.T) {
	orig, _ := Get("ranks")
	t.Cleanup(func() { Replace(orig) })

	path := filepath.Join(t.TempDir(), "tables.yaml")
	doc := "entities:\n  - key: ranks\n    label: Tiers\n    source: { table: tiers }\n    columns: [{ id: name }]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 1 {
		t.Errorf("LoadFile() = %d, want 1", n)
	}
	if def, _ := Get("ranks"); def.Label != "Tiers" {
		t.Errorf("ranks label = %q, want Tiers", def.Label)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) succeeded")
	}
}

func TestRegistry(t *testing.T) {
	if Count() < 5 {
		t.Errorf("Count() = %d, want at least 5", Count())
	}

	groups := Groups()
	if len(groups) == 0 || groups[0] != "Accounts" {
		t.Errorf("Groups() = %v", groups)
	}

	contests := ByGroup("Contests")
	keys := make([]string, len(contests))
	for i, d := range contests {
		keys[i] = d.Key
	}
	if strings.Join(keys, ",") != "participants,ranks,votes" {
		t.Errorf("ByGroup(Contests) = %v", keys)
	}

	all := All()
	if all[0].Group != "Accounts" {
		t.Errorf("All()[0].Group = %q, want Accounts", all[0].Group)
	}

	defer func() {
		if recover() == nil {
			t.Error("Register(duplicate) did not panic")
		}
	}()
	Register(Definition{Key: "users"})
}

func TestValidateWrapsInvalidConfig(t *testing.T) {
	err := Definition{}.Validate()
	if !errors.Is(err, datatable.ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
	}
}
