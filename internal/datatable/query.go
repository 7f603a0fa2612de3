package datatable

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/votedesk/internal/clock"
)

// Query client defaults.
const (
	DefaultQueryStaleTime  = 30 * time.Second
	DefaultQueryTimeout    = 30 * time.Second
	DefaultQueryMaxEntries = 256
)

// QueryClient caches page results by request identity and serves them to
// query hooks with stale-while-revalidate semantics. Fetches run in their
// own goroutines; failed fetches are never retried automatically.
type QueryClient struct {
	clock      clock.Clock
	staleTime  time.Duration
	timeout    time.Duration
	maxEntries int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*queryEntry
}

type queryEntry struct {
	result    *PageResult
	err       error
	updatedAt time.Time
	lastUsed  time.Time
	inflight  chan struct{}
}

// QueryOption configures a QueryClient.
type QueryOption func(*QueryClient)

// WithQueryClock sets the clock used for staleness.
func WithQueryClock(c clock.Clock) QueryOption { return func(q *QueryClient) { q.clock = c } }

// WithStaleTime sets how long a result is served without revalidation.
func WithStaleTime(d time.Duration) QueryOption { return func(q *QueryClient) { q.staleTime = d } }

// WithQueryTimeout bounds each background fetch.
func WithQueryTimeout(d time.Duration) QueryOption { return func(q *QueryClient) { q.timeout = d } }

// WithMaxEntries bounds the number of cached results.
func WithMaxEntries(n int) QueryOption { return func(q *QueryClient) { q.maxEntries = n } }

// WithQueryLogger sets the logger for fetch failures.
func WithQueryLogger(l *slog.Logger) QueryOption { return func(q *QueryClient) { q.logger = l } }

// NewQueryClient creates an empty client.
func NewQueryClient(opts ...QueryOption) *QueryClient {
	q := &QueryClient{
		clock:      clock.Real(),
		staleTime:  DefaultQueryStaleTime,
		timeout:    DefaultQueryTimeout,
		maxEntries: DefaultQueryMaxEntries,
		entries:    make(map[string]*queryEntry),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

func queryKey(scope string, req PageRequest) string {
	return scope + "|" + req.Key()
}

// Hook returns a query hook for one table mount. scope separates the
// cache namespaces of different resources. The hook remembers the last
// result it delivered and offers it as placeholder data while a new
// request has nothing cached yet.
func (q *QueryClient) Hook(scope string, fetch FetchFunc) QueryHook {
	var (
		mu          sync.Mutex
		placeholder *PageResult
	)

	return func(req PageRequest) QueryState {
		key := queryKey(scope, req)
		state := q.state(key, req, fetch)

		mu.Lock()
		defer mu.Unlock()
		if state.Data != nil {
			placeholder = state.Data
		} else if placeholder != nil && state.Err == nil {
			state.Data = placeholder
			state.IsPlaceholder = true
		}
		return state
	}
}

func (q *QueryClient) state(key string, req PageRequest, fetch FetchFunc) QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	e, ok := q.entries[key]
	if !ok {
		e = &queryEntry{}
		q.entries[key] = e
		q.startLocked(key, e, req, fetch)
		q.evictLocked()
	} else if e.inflight == nil && now.Sub(e.updatedAt) >= q.staleTime && e.err == nil {
		q.startLocked(key, e, req, fetch)
	}
	e.lastUsed = now

	st := QueryState{
		Data:    e.result,
		Err:     e.err,
		Refetch: func() { q.refetch(key, req, fetch) },
	}
	if e.inflight != nil {
		st.Done = e.inflight
		st.IsLoading = e.result == nil
		st.IsRefetching = e.result != nil
	}
	return st
}

// refetch starts a fetch for key unless one is already running.
func (q *QueryClient) refetch(key string, req PageRequest, fetch FetchFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	if !ok {
		e = &queryEntry{}
		q.entries[key] = e
	}
	if e.inflight == nil {
		q.startLocked(key, e, req, fetch)
	}
}

func (q *QueryClient) startLocked(key string, e *queryEntry, req PageRequest, fetch FetchFunc) {
	done := make(chan struct{})
	e.inflight = done

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()

		res, err := fetch(ctx, req)

		q.mu.Lock()
		if err != nil {
			e.err = err
			q.logger.Warn("query fetch failed", "key", key, "error", err)
		} else {
			e.result = &res
			e.err = nil
		}
		e.updatedAt = q.clock.Now()
		e.inflight = nil
		q.mu.Unlock()
		close(done)
	}()
}

// evictLocked drops the least recently used settled entries beyond
// maxEntries.
func (q *QueryClient) evictLocked() {
	if q.maxEntries <= 0 || len(q.entries) <= q.maxEntries {
		return
	}
	type aged struct {
		key  string
		used time.Time
	}
	var settled []aged
	for k, e := range q.entries {
		if e.inflight == nil {
			settled = append(settled, aged{k, e.lastUsed})
		}
	}
	sort.Slice(settled, func(i, j int) bool { return settled[i].used.Before(settled[j].used) })
	for _, a := range settled {
		if len(q.entries) <= q.maxEntries {
			break
		}
		delete(q.entries, a.key)
	}
}

// Invalidate marks every result under scope as stale, so the next render
// revalidates it. Errored entries are dropped so the next render fetches
// afresh. Call it after a bulk action changed the resource.
func (q *QueryClient) Invalidate(scope string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	prefix := scope + "|"
	for k, e := range q.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if e.result == nil && e.inflight == nil {
			delete(q.entries, k)
			continue
		}
		e.updatedAt = time.Time{}
		e.err = nil
	}
}

// Len returns the number of cached entries.
func (q *QueryClient) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
