package datatable

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// ColumnPrefs are the persisted layout choices of one table.
type ColumnPrefs struct {
	Widths map[string]int `json:"widths,omitempty"`
	Hidden []string       `json:"hidden,omitempty"`
}

// Clone returns a deep copy.
func (p ColumnPrefs) Clone() ColumnPrefs {
	out := ColumnPrefs{Hidden: slices.Clone(p.Hidden)}
	if p.Widths != nil {
		out.Widths = maps.Clone(p.Widths)
	}
	return out
}

// PreferenceStore persists ColumnPrefs per table id. Load returns zero
// prefs, not an error, for a table that has none saved.
type PreferenceStore interface {
	Load(ctx context.Context, tableID string) (ColumnPrefs, error)
	Save(ctx context.Context, tableID string, prefs ColumnPrefs) error
}

// MemoryPreferences keeps prefs for the life of the process.
type MemoryPreferences struct {
	mu    sync.RWMutex
	prefs map[string]ColumnPrefs
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{prefs: make(map[string]ColumnPrefs)}
}

func (m *MemoryPreferences) Load(_ context.Context, tableID string) (ColumnPrefs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefs[tableID].Clone(), nil
}

func (m *MemoryPreferences) Save(_ context.Context, tableID string, prefs ColumnPrefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[tableID] = prefs.Clone()
	return nil
}
