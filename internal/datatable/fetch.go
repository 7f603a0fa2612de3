package datatable

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads one page for req.
type FetchFunc func(ctx context.Context, req PageRequest) (PageResult, error)

// FetchStrategy is how a table obtains its pages: either an ImperativeFetch
// the table drives itself, or a ReactiveQuery whose hook owns caching.
// The set of implementations is closed.
type FetchStrategy interface {
	fetchStrategy()
}

// ImperativeFetch wraps a plain fetch function. The table deduplicates
// in-flight loads and caches recent pages itself.
type ImperativeFetch struct {
	Fetch FetchFunc
}

// ReactiveQuery wraps a query hook. The table calls the hook on every
// render with the current request; the hook caches by request identity and
// keeps previous data visible while the next page loads.
type ReactiveQuery struct {
	Hook QueryHook
}

func (ImperativeFetch) fetchStrategy() {}
func (ReactiveQuery) fetchStrategy()   {}

// QueryHook returns the query state for req and starts a fetch when the
// hook has nothing current for it.
type QueryHook func(req PageRequest) QueryState

// QueryState is what a QueryHook reports for one request.
type QueryState struct {
	// Data is the result for the request, or the previous request's
	// result when IsPlaceholder is set.
	Data          *PageResult
	IsPlaceholder bool
	IsLoading     bool
	IsRefetching  bool
	Err           error

	// Refetch forces a new fetch for the request.
	Refetch func()

	// Done is closed when the fetch in flight for this request settles.
	// Nil when nothing is in flight.
	Done <-chan struct{}
}

// DefaultPageCacheSize is how many pages an imperative table keeps.
const DefaultPageCacheSize = 16

// pageCache is the in-flight/last-result cache for ImperativeFetch.
// Concurrent loads of one key share a single call; completed pages are
// kept in a small LRU so revisiting a page renders without a round trip.
type pageCache struct {
	fetch FetchFunc
	group singleflight.Group

	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cachedPage struct {
	key    string
	result PageResult
}

func newPageCache(fetch FetchFunc, capacity int) *pageCache {
	if capacity <= 0 {
		capacity = DefaultPageCacheSize
	}
	return &pageCache{
		fetch:    fetch,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// get returns the cached result for key.
func (c *pageCache) get(key string) (PageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return PageResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cachedPage).result, true
}

func (c *pageCache) put(key string, result PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cachedPage).result = result
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cachedPage{key: key, result: result})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cachedPage).key)
	}
}

// purge drops every cached page.
func (c *pageCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// load returns the page for req, from cache unless force is set. Callers
// asking for the same key while a fetch is running share its result.
func (c *pageCache) load(ctx context.Context, req PageRequest, force bool) (PageResult, error) {
	key := req.Key()
	if !force {
		if res, ok := c.get(key); ok {
			return res, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		c.put(key, res)
		return res, nil
	})
	if err != nil {
		return PageResult{}, err
	}
	return v.(PageResult), nil
}
