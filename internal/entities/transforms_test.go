package entities

import (
	"testing"
	"time"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"active", "Active"},
		{"pending_payment", "Pending Payment"},
		{"ussd", "USSD"},
		{"BANK_TRANSFER", "Bank Transfer"},
		{"in-review", "In Review"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StatusLabel(tt.in); got != tt.want {
			t.Errorf("StatusLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatExport(t *testing.T) {
	ts := time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		name   string
		format Format
		in     any
		want   any
	}{
		{"money rounds", FormatMoney, 10.006, 10.01},
		{"money from string", FormatMoney, "19.9", 19.9},
		{"money not a number", FormatMoney, "n/a", "n/a"},
		{"count", FormatCount, 42.0, int64(42)},
		{"status", FormatStatus, "evicted", "Evicted"},
		{"date", FormatDate, ts, "2024-05-02"},
		{"date from rfc3339", FormatDate, "2024-05-02T14:30:00Z", "2024-05-02"},
		{"datetime", FormatDateTime, ts, "2024-05-02 14:30"},
		{"bool", FormatBool, true, "Yes"},
		{"bool string", FormatBool, "false", "No"},
		{"text", FormatText, 7, 7},
		{"nil", FormatMoney, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Export(tt.in); got != tt.want {
				t.Errorf("Export(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		format Format
		in     any
		want   string
	}{
		{FormatMoney, 1234.5, "1,234.50"},
		{FormatCount, int64(1234567), "1,234,567"},
		{FormatStatus, "pending", "Pending"},
		{FormatDate, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), "2024-01-09"},
		{FormatText, "plain", "plain"},
		{FormatMoney, nil, ""},
	}
	for _, tt := range tests {
		if got := tt.format.Display(tt.in); got != tt.want {
			t.Errorf("%q.Display(%v) = %q, want %q", tt.format, tt.in, got, tt.want)
		}
	}
}

func TestFormatValid(t *testing.T) {
	if !FormatMoney.Valid() || !FormatText.Valid() {
		t.Error("known formats reported invalid")
	}
	if Format("roman").Valid() {
		t.Error("unknown format reported valid")
	}
}
