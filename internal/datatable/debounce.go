package datatable

import (
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/votedesk/internal/clock"
)

// DefaultSearchDelay is the quiet period before typed search text is
// committed.
const DefaultSearchDelay = 500 * time.Millisecond

// SearchDebouncer separates the immediately-updated input value from the
// committed search value. Every keystroke restarts the quiet period;
// clearing the field commits at once.
type SearchDebouncer struct {
	clock  clock.Clock
	delay  time.Duration
	commit func(string)

	mu        sync.Mutex
	input     string
	committed string
	timer     *clock.Timer
	gen       uint64
}

// NewSearchDebouncer creates a debouncer that calls commit with the new
// search value. commit runs without the debouncer's lock held.
func NewSearchDebouncer(c clock.Clock, delay time.Duration, initial string, commit func(string)) *SearchDebouncer {
	if c == nil {
		c = clock.Real()
	}
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	return &SearchDebouncer{
		clock:     c,
		delay:     delay,
		commit:    commit,
		input:     initial,
		committed: initial,
	}
}

// Delay returns the quiet period.
func (d *SearchDebouncer) Delay() time.Duration { return d.delay }

// Input records new text from the search box.
func (d *SearchDebouncer) Input(value string) {
	d.mu.Lock()
	d.input = value
	d.stopLocked()

	if strings.TrimSpace(value) == "" {
		changed := d.committed != ""
		d.committed = ""
		d.mu.Unlock()
		if changed {
			d.commit("")
		}
		return
	}

	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()
}

// fire commits the pending input unless a newer keystroke superseded it.
func (d *SearchDebouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	value := strings.TrimSpace(d.input)
	changed := value != d.committed
	d.committed = value
	d.mu.Unlock()

	if changed {
		d.commit(value)
	}
}

// Flush commits the pending input now, e.g. when the user presses Enter.
func (d *SearchDebouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Reset sets both values without committing, e.g. after the URL changed
// underneath the table.
func (d *SearchDebouncer) Reset(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.input = value
	d.committed = value
}

// Stop cancels any pending commit.
func (d *SearchDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *SearchDebouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Value returns the current text of the search box.
func (d *SearchDebouncer) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// Committed returns the value used in fetches.
func (d *SearchDebouncer) Committed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

// Pending reports whether a commit is scheduled.
func (d *SearchDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
