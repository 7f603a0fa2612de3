package datatable

import (
	"fmt"
	"strings"
)

// Size is the visual density of a table.
type Size string

const (
	SizeSmall  Size = "sm"
	SizeMedium Size = "md"
	SizeLarge  Size = "lg"
)

// ParseSize defaults to SizeMedium.
func ParseSize(s string) Size {
	switch Size(strings.ToLower(s)) {
	case SizeSmall:
		return SizeSmall
	case SizeLarge:
		return SizeLarge
	}
	return SizeMedium
}

// Options are the feature flags of a table. Each flag gates its
// sub-component entirely: a disabled feature has no state and no View
// output.
type Options struct {
	EnableRowSelection       bool `yaml:"rowSelection" json:"enableRowSelection"`
	EnableClickRowSelect     bool `yaml:"clickRowSelect" json:"enableClickRowSelect"`
	EnableKeyboardNavigation bool `yaml:"keyboardNavigation" json:"enableKeyboardNavigation"`
	EnableSearch             bool `yaml:"search" json:"enableSearch"`
	EnableDateFilter         bool `yaml:"dateFilter" json:"enableDateFilter"`
	EnableColumnVisibility   bool `yaml:"columnVisibility" json:"enableColumnVisibility"`
	EnableURLState           bool `yaml:"urlState" json:"enableUrlState"`
	EnableExport             bool `yaml:"export" json:"enableExport"`

	Size Size `yaml:"size" json:"size"`

	// ColumnResizingTableID scopes persisted column widths and
	// visibility. Empty disables persistence.
	ColumnResizingTableID string `yaml:"columnResizingTableId" json:"columnResizingTableId,omitempty"`

	SearchPlaceholder string `yaml:"searchPlaceholder" json:"searchPlaceholder,omitempty"`
}

// DefaultOptions enables everything except click-to-select.
func DefaultOptions() Options {
	return Options{
		EnableRowSelection:       true,
		EnableKeyboardNavigation: true,
		EnableSearch:             true,
		EnableDateFilter:         true,
		EnableColumnVisibility:   true,
		EnableURLState:           true,
		EnableExport:             true,
		Size:                     SizeMedium,
		SearchPlaceholder:        "Search...",
	}
}

// Column describes one display column.
type Column struct {
	ID       string `yaml:"id" json:"id"`
	Header   string `yaml:"header" json:"header"`
	Field    string `yaml:"field" json:"field"`
	Sortable bool   `yaml:"sortable" json:"sortable"`
	Hideable bool   `yaml:"hideable" json:"hideable"`
	Width    int    `yaml:"width" json:"width,omitempty"`
}

// SelectColumnID is the id of the checkbox column prepended when row
// selection is enabled.
const SelectColumnID = "select"

func validateColumns(cols []Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.ID == "" {
			return fmt.Errorf("%w: column %d has no id", ErrInvalidConfig, i)
		}
		if c.ID == SelectColumnID {
			return fmt.Errorf("%w: column id %q is reserved", ErrInvalidConfig, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidConfig, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
