package datatable

import (
	"context"
	"fmt"
	"iter"
)

// ExportChunkSize is the page size of every full-dataset export request,
// independent of the table's display page size.
const ExportChunkSize = 100

// MaxExportChunks caps a full-dataset export at one million rows.
const MaxExportChunks = 10_000

// BulkFetchFunc returns every row matching req's search, sort, filters and
// date range. Page and page size in req are ignored.
type BulkFetchFunc func(ctx context.Context, req PageRequest) ([]Row, error)

// Chunks is the lazy sequence of export chunks for req. Each iteration
// starts over at page 1. Chunks are requested strictly one after another,
// each only after the previous one returned, and the sequence ends when a
// response has no next page, when a response is empty (even if it claims
// a next page), on the first error, or when ctx is done. An error is
// yielded as the final element.
func Chunks(ctx context.Context, fetch FetchFunc, req PageRequest) iter.Seq2[[]Row, error] {
	return func(yield func([]Row, error) bool) {
		base := req.WithPageSize(ExportChunkSize)
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if page > MaxExportChunks {
				yield(nil, fmt.Errorf("%w: more than %d chunks", ErrExportTooLarge, MaxExportChunks))
				return
			}

			res, err := fetch(ctx, base.WithPage(page))
			if err != nil {
				yield(nil, fmt.Errorf("fetch chunk %d: %w", page, err))
				return
			}
			if len(res.Data) == 0 {
				return
			}
			if !yield(res.Data, nil) {
				return
			}
			if !res.Pagination.HasNextPage {
				return
			}
		}
	}
}

// CollectAll folds Chunks into one slice. Any error discards everything
// gathered so far.
func CollectAll(ctx context.Context, fetch FetchFunc, req PageRequest) ([]Row, error) {
	var rows []Row
	for chunk, err := range Chunks(ctx, fetch, req) {
		if err != nil {
			return nil, err
		}
		rows = append(rows, chunk...)
	}
	return rows, nil
}

// ChunkedBulkFetch derives a BulkFetchFunc from a page fetch function.
func ChunkedBulkFetch(fetch FetchFunc) BulkFetchFunc {
	return func(ctx context.Context, req PageRequest) ([]Row, error) {
		return CollectAll(ctx, fetch, req)
	}
}
