package datatable

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource serves rows "row-1".."row-N" and counts fetches.
type fakeSource struct {
	total int
	calls atomic.Int32

	mu       sync.Mutex
	requests []PageRequest
	gate     chan struct{}
	err      error
}

func (f *fakeSource) fetch(ctx context.Context, req PageRequest) (PageResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return PageResult{}, ctx.Err()
		}
	}
	if err != nil {
		return PageResult{}, err
	}

	start := req.Offset()
	end := min(start+req.PageSize, f.total)
	var rows []Row
	for i := start; i < end; i++ {
		rows = append(rows, Row{"id": RowID(rowName(i + 1)), "n": i + 1})
	}
	return PageResult{Data: rows, Pagination: NewPaginationInfo(req.Page, req.PageSize, int64(f.total))}, nil
}

func rowName(n int) string {
	return "row-" + strconv.Itoa(n)
}

func (f *fakeSource) lastRequests() []PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PageRequest(nil), f.requests...)
}

func TestPageCache_ServesRepeatFromCache(t *testing.T) {
	src := &fakeSource{total: 50}
	c := newPageCache(src.fetch, 4)
	req := PageRequest{Page: 1, PageSize: 10}

	for i := 0; i < 3; i++ {
		if _, err := c.load(context.Background(), req, false); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}

	if _, err := c.load(context.Background(), req, true); err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("fetch calls after force = %d, want 2", n)
	}
}

func TestPageCache_DeduplicatesInFlight(t *testing.T) {
	src := &fakeSource{total: 50, gate: make(chan struct{})}
	c := newPageCache(src.fetch, 4)
	req := PageRequest{Page: 2, PageSize: 10}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.load(context.Background(), req, false); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestPageCache_EvictsOldest(t *testing.T) {
	src := &fakeSource{total: 100}
	c := newPageCache(src.fetch, 2)
	ctx := context.Background()

	for p := 1; p <= 3; p++ {
		if _, err := c.load(ctx, PageRequest{Page: p, PageSize: 10}, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := c.get(PageRequest{Page: 1, PageSize: 10}.Key()); ok {
		t.Error("page 1 should have been evicted")
	}
	if _, ok := c.get(PageRequest{Page: 3, PageSize: 10}.Key()); !ok {
		t.Error("page 3 missing from cache")
	}
}

func TestPageCache_ErrorsAreNotCached(t *testing.T) {
	src := &fakeSource{total: 10, err: errors.New("boom")}
	c := newPageCache(src.fetch, 2)
	req := PageRequest{Page: 1, PageSize: 10}

	if _, err := c.load(context.Background(), req, false); err == nil {
		t.Fatal("expected error")
	}
	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()

	if _, err := c.load(context.Background(), req, false); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("fetch calls = %d, want 2", n)
	}
}
