package web

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/JonMunkholm/votedesk/internal/web/middleware"
)

// Request parameters that travel alongside table state but are not part of
// it.
const (
	paramMount  = "mount"
	paramFormat = "format"
	paramScope  = "scope"
)

// mountID returns the table mount the request belongs to: the
// X-Table-Mount header, else the mount query parameter. A missing or
// malformed id starts a new mount.
func mountID(r *http.Request) string {
	id := r.Header.Get(middleware.MountHeader)
	if id == "" {
		id = r.URL.Query().Get(paramMount)
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewString()
}

// stateValues returns the query string that holds the table state. htmx
// requests carry it in the browser URL (HX-Current-URL); everything else
// in the request's own query string.
func stateValues(r *http.Request) url.Values {
	q := r.URL.Query()
	if isHTMX(r) {
		if cur, err := url.Parse(r.Header.Get("HX-Current-URL")); err == nil {
			q = cur.Query()
		}
	}
	q.Del(paramMount)
	q.Del(paramFormat)
	q.Del(paramScope)
	return q
}

// owner scopes column preferences and mounts to the signed-in admin.
func owner(r *http.Request) string {
	return middleware.Subject(r.Context())
}
