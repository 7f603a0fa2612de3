package web

// handlers_common.go holds the form parsing shared by the table actions.

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// formInt parses a required integer form value.
func formInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(name, raw)
	}
	return n, nil
}

// formBool treats "true", "1" and "on" as true and anything else, including
// a missing value (an unchecked checkbox), as false.
func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(name))) {
	case "true", "1", "on":
		return true
	}
	return false
}

// formDate parses an optional YYYY-MM-DD form value.
func formDate(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", badParam(name, raw)
	}
	return raw, nil
}

// formRowID reads a required row id.
func formRowID(r *http.Request) (datatable.RowID, error) {
	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		return "", badParam("id", id)
	}
	return datatable.RowID(id), nil
}
