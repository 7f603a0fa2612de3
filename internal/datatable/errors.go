package datatable

import (
	"errors"
	"fmt"
)

var (
	ErrSelectionDisabled = errors.New("row selection is disabled for this table")
	ErrExportDisabled    = errors.New("export is disabled for this table")
	ErrNoBulkFetch       = errors.New("no bulk fetch configured for full export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrStaleResponse     = errors.New("stale response discarded")
	ErrExportTooLarge    = errors.New("export too large")
	ErrInvalidConfig     = errors.New("invalid table config")
)

// FetchError wraps a failed page fetch with the request that caused it.
type FetchError struct {
	Request PageRequest
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Request.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
