package tui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{250 * time.Millisecond, "250ms"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m 1s"},
		{-time.Second, "-"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := duration(tt.d); got != tt.want {
				t.Errorf("duration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestDateTimeShort(t *testing.T) {
	if got := dateTimeShort(time.Time{}); got != "-" {
		t.Errorf("dateTimeShort(zero) = %q, want -", got)
	}
	got := dateTimeShort(time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))
	if _, err := time.Parse("01-02 15:04:05", got); err != nil {
		t.Errorf("dateTimeShort() = %q, not in expected format: %v", got, err)
	}
}

func TestOutcomeColor(t *testing.T) {
	tests := []struct {
		label string
		want  tcell.Color
	}{
		{"", tcell.ColorGray},
		{renewerr.OutcomeSuccess, tcell.ColorGreen},
		{string(renewerr.KindAlreadyHasLatestUPass), tcell.ColorTeal},
		{string(renewerr.KindAuthenticationFailed), tcell.ColorRed},
	}
	for _, tt := range tests {
		if got := outcomeColor(tt.label); got != tt.want {
			t.Errorf("outcomeColor(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
