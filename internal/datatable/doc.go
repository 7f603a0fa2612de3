// Package datatable is the engine behind every list view of the admin
// dashboard: paginated, sortable, filterable and searchable tables whose
// state lives in the URL, with cross-page row selection and CSV, XLSX and
// PDF export.
//
// The package knows nothing about HTTP or HTML. A host binds a [StatePort]
// to its query string, plugs in a [FetchStrategy] and draws the [View] a
// [Table] produces.
//
// # Fetching
//
// Two strategies are supported:
//
//   - [ImperativeFetch]: the table calls a [FetchFunc] itself. Concurrent
//     loads of the same request share one call and recent pages are kept.
//   - [ReactiveQuery]: the table asks a [QueryHook] for the state of its
//     current request. [QueryClient] provides hooks with
//     stale-while-revalidate caching and placeholder data.
//
// Either way a response for a request the table has moved away from is
// discarded, and failed fetches are only retried by [Table.Refresh].
//
// # URL State
//
// [URLState] reads page, pageSize, search, sortBy, sortOrder, from_date,
// to_date, hidden and the declared domain filters. Defaults are never
// written, filter sentinels remove their parameter, and any change to the
// result set (search, sort, filter, date range, page size) returns to
// page 1.
//
// # Export
//
// The current page exports the rows on screen. A full export walks the
// result set with [Chunks], requesting pages of [ExportChunkSize] one at a
// time until the server reports no next page or returns an empty page.
// Files are rendered in memory and only written once complete.
//
// # Error Handling
//
// Technical errors map to user messages with [MapError]:
//
//   - FETCH001-FETCH004: data source errors
//   - EXP001-EXP004: export errors
//   - SEL001: selection disabled
//   - CFG001: unknown column or bad table config
//   - AUTH001-AUTH002, RATE001: request errors raised by the web layer
package datatable
