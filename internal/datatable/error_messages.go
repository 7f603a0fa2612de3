package datatable

// # Error Codes Reference
//
// Errors shown in a table's error state or returned by the table API carry
// a code support staff can look up.
//
// # Fetch Errors (FETCH001-FETCH099)
//
//	FETCH001 - Upstream unreachable: connection refused / no such host
//	FETCH002 - Timed out: deadline exceeded / timeout
//	FETCH003 - Upstream rejected the request: status 4xx
//	FETCH004 - Upstream failed: status 5xx / fetch page
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export disabled for this table
//	EXP002 - Unsupported format
//	EXP003 - Too many exports running
//	EXP004 - Export too large
//
// # Selection Errors (SEL001)
//
//	SEL001 - Row selection disabled for this table
//
// # Configuration Errors (CFG001-CFG002)
//
//	CFG001 - Unknown column / invalid table config
//	CFG002 - Unknown table
//
// # Request Errors (REQ001)
//
//	REQ001 - Invalid parameter
//
// # Auth Errors (AUTH001-AUTH002)
//
//	AUTH001 - Missing credentials
//	AUTH002 - Invalid or expired token
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains against
// the error text. The first match wins, so specific patterns come first.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Export (before fetch: a failed full export also mentions "fetch chunk").
	{"export is disabled", UserMessage{"Export is not available for this table", "Use the current page view instead", "EXP001"}},
	{"unsupported export format", UserMessage{"That export format is not supported", "Choose CSV, XLSX or PDF", "EXP002"}},
	{"too many exports", UserMessage{"Other exports are still running", "Please wait a moment and try again", "EXP003"}},
	{"export too large", UserMessage{"The result set is too large to export", "Narrow the search or filters and try again", "EXP004"}},
	{"no bulk fetch", UserMessage{"Full export is not available for this table", "Export the current page instead", "EXP001"}},

	// Selection
	{"row selection is disabled", UserMessage{"Rows cannot be selected in this table", "No action needed", "SEL001"}},

	// Configuration
	{"unknown column", UserMessage{"That column does not exist", "Reload the page to reset the table", "CFG001"}},
	{"invalid table config", UserMessage{"This table is misconfigured", "Contact support", "CFG001"}},
	{"unknown table", UserMessage{"That table does not exist", "Pick a table from the navigation", "CFG002"}},

	// Request
	{"invalid parameter", UserMessage{"That value is not valid", "Check the input and try again", "REQ001"}},

	// Auth
	{"missing credentials", UserMessage{"You are not signed in", "Sign in and try again", "AUTH001"}},
	{"invalid token", UserMessage{"Your session is invalid or has expired", "Sign in again", "AUTH002"}},

	// Rate limiting
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},

	// Fetch
	{"connection refused", UserMessage{"Unable to reach the data source", "Please try again in a few moments", "FETCH001"}},
	{"no such host", UserMessage{"Unable to reach the data source", "Please try again in a few moments", "FETCH001"}},
	{"context deadline exceeded", UserMessage{"Loading data timed out", "Click refresh to try again", "FETCH002"}},
	{"timeout", UserMessage{"Loading data timed out", "Click refresh to try again", "FETCH002"}},
	{"status 4", UserMessage{"The data source rejected the request", "Reset the filters and try again", "FETCH003"}},
	{"status 5", UserMessage{"The data source failed to respond", "Click refresh to try again", "FETCH004"}},
	{"fetch page", UserMessage{"Failed to load data", "Click refresh to try again", "FETCH004"}},
	{"fetch chunk", UserMessage{"Failed to load data for the export", "Please try the export again", "FETCH004"}},
}

// defaultMessage is returned when no pattern matches (ERR000). Check the
// logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError returns "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a specific pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
