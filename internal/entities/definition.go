package entities

import (
	"fmt"

	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/store"
)

// FetchMode selects how a table fetches pages.
type FetchMode string

const (
	FetchImperative FetchMode = "imperative"
	FetchReactive   FetchMode = "reactive"
)

// Definition describes one admin list view.
type Definition struct {
	Key     string    `yaml:"key" json:"key"`
	Group   string    `yaml:"group" json:"group"`
	Label   string    `yaml:"label" json:"label"`
	IDField string    `yaml:"idField" json:"idField"`
	Fetch   FetchMode `yaml:"fetch" json:"fetch"`

	Source   SourceDef         `yaml:"source" json:"-"`
	Case     CaseDef           `yaml:"case" json:"-"`
	Defaults DefaultsDef       `yaml:"defaults" json:"defaults"`
	Options  datatable.Options `yaml:"options" json:"options"`
	Filters  []FilterDef       `yaml:"filters" json:"filters,omitempty"`
	Columns  []ColumnDef       `yaml:"columns" json:"columns"`
	Export   ExportDef         `yaml:"export" json:"-"`
}

// SourceDef says where rows come from: a Postgres table or an upstream
// API path.
type SourceDef struct {
	Table         string   `yaml:"table"`
	APIPath       string   `yaml:"apiPath"`
	SearchColumns []string `yaml:"searchColumns"`
	DateColumn    string   `yaml:"dateColumn"`
}

// CaseDef holds the short case names used in the definitions file.
type CaseDef struct {
	URL string `yaml:"url"`
	API string `yaml:"api"`
}

// DefaultsDef are the URL defaults.
type DefaultsDef struct {
	PageSize  int    `yaml:"pageSize" json:"pageSize"`
	SortBy    string `yaml:"sortBy" json:"sortBy,omitempty"`
	SortOrder string `yaml:"sortOrder" json:"sortOrder,omitempty"`
}

// FilterDef is a single-select filter whose Sentinel value means "no
// filter".
type FilterDef struct {
	Key      string   `yaml:"key" json:"key"`
	Column   string   `yaml:"column" json:"-"`
	Sentinel string   `yaml:"sentinel" json:"sentinel"`
	Label    string   `yaml:"label" json:"label"`
	Options  []string `yaml:"options" json:"options"`
}

// ColumnDef is a display column plus its storage column and cell format.
type ColumnDef struct {
	datatable.Column `yaml:",inline"`
	DBColumn         string `yaml:"db" json:"-"`
	Format           Format `yaml:"format" json:"format,omitempty"`
}

// ExportDef maps row fields to export columns.
type ExportDef struct {
	EntityName string            `yaml:"entityName"`
	Columns    []ExportColumnDef `yaml:"columns"`
}

// ExportColumnDef is one export column with an optional value format.
type ExportColumnDef struct {
	datatable.ExportColumn `yaml:",inline"`
	Format                 Format `yaml:"format"`
}

// Validate reports the first structural problem with d.
func (d Definition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: definition without key", datatable.ErrInvalidConfig)
	}
	if d.Fetch != FetchImperative && d.Fetch != FetchReactive {
		return fmt.Errorf("%w: %s: fetch mode %q", datatable.ErrInvalidConfig, d.Key, d.Fetch)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("%w: %s: no columns", datatable.ErrInvalidConfig, d.Key)
	}
	if d.Source.Table == "" && d.Source.APIPath == "" {
		return fmt.Errorf("%w: %s: source needs a table or an api path", datatable.ErrInvalidConfig, d.Key)
	}
	if d.Case.URL != "" {
		if _, ok := datatable.ParseCase(d.Case.URL); !ok {
			return fmt.Errorf("%w: %s: url case %q", datatable.ErrInvalidConfig, d.Key, d.Case.URL)
		}
	}
	if d.Case.API != "" {
		if _, ok := datatable.ParseCase(d.Case.API); !ok {
			return fmt.Errorf("%w: %s: api case %q", datatable.ErrInvalidConfig, d.Key, d.Case.API)
		}
	}
	if d.Defaults.SortOrder != "" {
		if _, ok := datatable.ParseSortOrder(d.Defaults.SortOrder); !ok {
			return fmt.Errorf("%w: %s: sort order %q", datatable.ErrInvalidConfig, d.Key, d.Defaults.SortOrder)
		}
	}
	for _, c := range d.Columns {
		if !c.Format.Valid() {
			return fmt.Errorf("%w: %s: column %s format %q", datatable.ErrInvalidConfig, d.Key, c.ID, c.Format)
		}
	}
	for _, c := range d.Export.Columns {
		if !c.Format.Valid() {
			return fmt.Errorf("%w: %s: export column %s format %q", datatable.ErrInvalidConfig, d.Key, c.Field, c.Format)
		}
	}
	return nil
}

// TableColumns returns the display columns.
func (d Definition) TableColumns() []datatable.Column {
	cols := make([]datatable.Column, len(d.Columns))
	for i, c := range d.Columns {
		cols[i] = c.Column
	}
	return cols
}

// CaseConfig resolves the short case names.
func (d Definition) CaseConfig() datatable.CaseConfig {
	var cc datatable.CaseConfig
	cc.URLFormat, _ = datatable.ParseCase(d.Case.URL)
	cc.APIFormat, _ = datatable.ParseCase(d.Case.API)
	return cc
}

// URLDefaults returns the table's URL defaults.
func (d Definition) URLDefaults() datatable.URLDefaults {
	order, _ := datatable.ParseSortOrder(d.Defaults.SortOrder)
	ud := datatable.URLDefaults{
		PageSize:  d.Defaults.PageSize,
		SortBy:    d.Defaults.SortBy,
		SortOrder: order,
	}
	for _, f := range d.Filters {
		ud.Filters = append(ud.Filters, datatable.FilterDefault{Key: f.Key, Sentinel: f.Sentinel})
	}
	return ud
}

// StoreSource maps the definition onto its Postgres table.
func (d Definition) StoreSource() store.Source {
	src := store.Source{
		Table:         d.Source.Table,
		SearchColumns: d.Source.SearchColumns,
		DateColumn:    d.Source.DateColumn,
	}
	for _, c := range d.Columns {
		src.Columns = append(src.Columns, store.ColumnMap{Field: c.Field, DBColumn: c.DBColumn})
		if c.Field == d.IDField {
			src.IDColumn = c.DBColumn
		}
	}
	if src.IDColumn == "" && d.IDField != "" {
		src.IDColumn = datatable.ConvertCase(d.IDField, datatable.CaseSnake)
	}
	for _, f := range d.Filters {
		src.Filters = append(src.Filters, store.FilterColumn{Key: f.Key, Column: f.Column, Sentinel: f.Sentinel})
	}
	return src
}

// ExportDescriptor builds the descriptor, or nil when export is disabled or
// no export columns are declared.
func (d Definition) ExportDescriptor() *datatable.ExportDescriptor {
	if !d.Options.EnableExport || len(d.Export.Columns) == 0 {
		return nil
	}
	desc := &datatable.ExportDescriptor{
		EntityName: d.Export.EntityName,
		Case:       d.CaseConfig(),
	}
	formatted := false
	for _, c := range d.Export.Columns {
		desc.Columns = append(desc.Columns, c.ExportColumn)
		if c.Format != FormatText {
			formatted = true
		}
	}
	if formatted {
		desc.Transform = exportTransform(d.Export.Columns)
	}
	return desc
}

// ColumnFormats maps display column ids to their cell formats.
func (d Definition) ColumnFormats() map[string]Format {
	m := make(map[string]Format, len(d.Columns))
	for _, c := range d.Columns {
		if c.Format != FormatText {
			m[c.ID] = c.Format
		}
	}
	return m
}

// Filter returns the filter declared for key.
func (d Definition) Filter(key string) (FilterDef, bool) {
	for _, f := range d.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return FilterDef{}, false
}

func (d *Definition) applyDefaults() {
	if d.IDField == "" {
		d.IDField = "id"
	}
	if d.Fetch == "" {
		d.Fetch = FetchImperative
	}
	if d.Label == "" {
		d.Label = d.Key
	}
	if d.Group == "" {
		d.Group = "Other"
	}
	if d.Export.EntityName == "" {
		d.Export.EntityName = d.Key
	}
	if d.Options.Size == "" {
		d.Options.Size = datatable.SizeMedium
	}
	if d.Options.SearchPlaceholder == "" {
		d.Options.SearchPlaceholder = "Search..."
	}
	for i := range d.Columns {
		c := &d.Columns[i]
		if c.Field == "" {
			c.Field = c.ID
		}
		if c.Header == "" {
			c.Header = c.ID
		}
		if c.DBColumn == "" {
			c.DBColumn = datatable.ConvertCase(c.Field, datatable.CaseSnake)
		}
	}
	for i := range d.Filters {
		f := &d.Filters[i]
		if f.Column == "" {
			f.Column = datatable.ConvertCase(f.Key, datatable.CaseSnake)
		}
		if f.Label == "" {
			f.Label = f.Key
		}
	}
}

// TableConfig assembles a datatable.Config for d around fetch. Reactive
// definitions go through queries, keyed by the entity so Invalidate(d.Key)
// drops them. The caller fills in State, Prefs, Clock and Logger.
func (d Definition) TableConfig(fetch datatable.FetchFunc, queries *datatable.QueryClient) datatable.Config {
	cfg := datatable.Config{
		Columns:  d.TableColumns(),
		IDField:  d.IDField,
		Export:   d.ExportDescriptor(),
		Defaults: d.URLDefaults(),
		Options:  d.Options,
		Case:     d.CaseConfig(),
	}
	if d.Fetch == FetchReactive && queries != nil {
		cfg.Fetch = datatable.ReactiveQuery{Hook: queries.Hook(d.Key, fetch)}
		cfg.BulkFetch = datatable.ChunkedBulkFetch(fetch)
	} else {
		cfg.Fetch = datatable.ImperativeFetch{Fetch: fetch}
	}
	return cfg
}
