package web

// errors.go provides unified error responses for the web layer.
//
// Every error is logged with its technical detail and request id, then
// mapped through datatable.MapError to a message, a suggested action and
// a support code. The client gets that mapped message in the form it asked
// for: an htmx fragment, JSON, or plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/logging"
	"github.com/JonMunkholm/votedesk/internal/web/views"
)

var (
	errUnknownTable  = errors.New("unknown table")
	errUnknownAction = errors.New("invalid parameter: unknown action")
	errBadParam      = errors.New("invalid parameter")
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// badParam reports a malformed request value.
func badParam(name, value string) error {
	return fmt.Errorf("%w: %s %q", errBadParam, name, value)
}

// statusFor picks the HTTP status for an error returned by the table engine.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, errBadParam),
		errors.Is(err, datatable.ErrUnknownColumn),
		errors.Is(err, datatable.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, datatable.ErrSelectionDisabled),
		errors.Is(err, datatable.ErrExportDisabled),
		errors.Is(err, datatable.ErrNoBulkFetch):
		return http.StatusConflict
	case errors.Is(err, datatable.ErrExportTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrTooManyExports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var fe *datatable.FetchError
	if errors.As(err, &fe) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped message in the form the
// client expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := datatable.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	if statusCode == http.StatusServiceUnavailable || statusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "10")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, msg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, msg, statusCode)
	default:
		respondErrorHTML(w, msg, statusCode)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg datatable.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func respondErrorHTML(w http.ResponseWriter, msg datatable.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// renderErrorPartial swaps the alert into the page's flash area instead of
// the table panel the request targeted.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg datatable.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Retarget", "#"+views.FlashID)
	w.Header().Set("HX-Reswap", "innerHTML")
	w.WriteHeader(statusCode)
	views.ErrorAlert(msg.Message, msg.Action, msg.Code, "").Render(r.Context(), w)
}

// writeError writes a JSON error for middleware that has no request
// context to map from.
func writeError(w http.ResponseWriter, status int, message string) {
	msg := datatable.MapError(errors.New(message))
	respondErrorJSON(w, msg, status)
}

// writeJSON encodes v as JSON.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
