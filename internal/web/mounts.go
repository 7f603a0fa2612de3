package web

// mounts.go keeps one datatable.Table per mounted table instance.
//
// A mount is one browser tab (or API client) looking at one entity. The
// page hands the tab a mount id, and every later request from that tab
// carries it in the X-Table-Mount header, so selection, the search
// debouncer and the page cache survive between requests. Mounts nobody
// has touched for the idle TTL are closed by a periodic sweep.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/votedesk/internal/clock"
	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// mountKey identifies a mount. The owner keeps two admins who somehow share
// a mount id apart.
type mountKey struct {
	owner  string
	id     string
	entity string
}

// mount is one live table. mu serializes the requests of one tab so a
// Sync, an action and the following Load are not interleaved with another
// request's.
type mount struct {
	key   mountKey
	table *datatable.Table

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
}

// MountRegistry owns every live mount.
type MountRegistry struct {
	clock clock.Clock
	ttl   time.Duration

	mu     sync.Mutex
	mounts map[mountKey]*mount
}

// NewMountRegistry creates an empty registry whose mounts expire after ttl
// without use.
func NewMountRegistry(c clock.Clock, ttl time.Duration) *MountRegistry {
	if c == nil {
		c = clock.Real()
	}
	return &MountRegistry{clock: c, ttl: ttl, mounts: make(map[mountKey]*mount)}
}

// acquire returns the locked mount for key, building its table with create
// on first use. created reports whether the table is new. The caller must
// call release.
func (r *MountRegistry) acquire(key mountKey, create func() (*datatable.Table, error)) (m *mount, created bool, err error) {
	for {
		r.mu.Lock()
		m = r.mounts[key]
		if m == nil {
			tbl, err := create()
			if err != nil {
				r.mu.Unlock()
				return nil, false, err
			}
			m = &mount{key: key, table: tbl, lastSeen: r.clock.Now()}
			r.mounts[key] = m
			created = true
		}
		r.mu.Unlock()

		m.mu.Lock()
		if !m.closed {
			m.lastSeen = r.clock.Now()
			return m, created, nil
		}
		// Swept between lookup and lock; look again.
		m.mu.Unlock()
		created = false
	}
}

func (r *MountRegistry) release(m *mount) {
	m.lastSeen = r.clock.Now()
	m.mu.Unlock()
}

// Len returns the number of live mounts.
func (r *MountRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounts)
}

// Sweep closes mounts idle for longer than the TTL and returns how many it
// closed. Mounts busy with a request are skipped.
func (r *MountRegistry) Sweep() int {
	now := r.clock.Now()
	var idle []*mount

	r.mu.Lock()
	for key, m := range r.mounts {
		if !m.mu.TryLock() {
			continue
		}
		if now.Sub(m.lastSeen) > r.ttl {
			m.closed = true
			delete(r.mounts, key)
			idle = append(idle, m)
		}
		m.mu.Unlock()
	}
	r.mu.Unlock()

	for _, m := range idle {
		m.table.Close()
	}
	return len(idle)
}

// CloseAll closes every mount. Used on shutdown.
func (r *MountRegistry) CloseAll() {
	r.mu.Lock()
	all := make([]*mount, 0, len(r.mounts))
	for key, m := range r.mounts {
		all = append(all, m)
		delete(r.mounts, key)
	}
	r.mu.Unlock()

	for _, m := range all {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.table.Close()
	}
}

// StartSweeper sweeps every interval until ctx is cancelled.
func (r *MountRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("mount sweeper started", "interval", interval, "idle_ttl", r.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("mount sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if n := r.Sweep(); n > 0 {
				slog.Info("closed idle table mounts",
					"mounts_closed", n,
					"mounts_live", r.Len(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}
