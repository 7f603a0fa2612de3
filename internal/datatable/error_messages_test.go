package datatable

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"fetch error", &FetchError{Request: PageRequest{Page: 2}, Err: errors.New("boom")}, "FETCH004"},
		{"connection refused", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), "FETCH001"},
		{"deadline", &FetchError{Err: context.DeadlineExceeded}, "FETCH002"},
		{"upstream 4xx", errors.New("upstream returned status 400"), "FETCH003"},
		{"upstream 5xx", errors.New("upstream returned status 502"), "FETCH004"},
		{"export disabled", &ExportError{Scope: ScopeAll, Format: FormatCSV, Err: ErrExportDisabled}, "EXP001"},
		{"bad format", fmt.Errorf("%w: %q", ErrUnsupportedFormat, "doc"), "EXP002"},
		{"export chunk failure keeps export code", &ExportError{Scope: ScopeAll, Err: ErrExportTooLarge}, "EXP004"},
		{"selection disabled", ErrSelectionDisabled, "SEL001"},
		{"unknown column", fmt.Errorf("%w: %q", ErrUnknownColumn, "x"), "CFG001"},
		{"unknown table", errors.New("unknown table \"polls\""), "CFG002"},
		{"bad parameter", errors.New(`invalid parameter: page "x"`), "REQ001"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("CONNECTION REFUSED"), "FETCH001"},
		{"unknown error returns default", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrSelectionDisabled)
	want := "Rows cannot be selected in this table (Code: SEL001). No action needed"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil is not user facing")
	}
	if !IsUserFacing(ErrExportDisabled) {
		t.Error("known error should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	tech := &FetchError{Err: errors.New("boom")}
	ue := NewUserError(tech)
	if ue.Error() != "Failed to load data" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if !errors.Is(ue, tech) {
		t.Error("Unwrap() should return the original error")
	}
}
