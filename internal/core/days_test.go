package core

import (
	"math"
	"testing"
	"time"
)

func TestSanitizeDays(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "regular", in: 7, want: 7},
		{name: "fraction", in: 0.5, want: 0.5},
		{name: "at ceiling", in: MaxWaitDays, want: MaxWaitDays},
		{name: "above ceiling", in: MaxWaitDays + 1, want: 0},
		{name: "negative", in: -1, want: 0},
		{name: "nan", in: math.NaN(), want: 0},
		{name: "inf", in: math.Inf(1), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeDays(tt.in, MaxWaitDays); got != tt.want {
				t.Errorf("SanitizeDays(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "7", want: 7},
		{in: " 1.5 ", want: 1.5},
		{in: "NaN", want: 0},
		{in: "abc", want: 0},
		{in: "", want: 0},
		{in: "4000", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDays(tt.in, MaxExpirationDays); got != tt.want {
				t.Errorf("ParseDays(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDaysOrDefault(t *testing.T) {
	if got := DaysOrDefault(math.NaN(), MaxWaitDays, DefaultWaitDays); got != DefaultWaitDays {
		t.Errorf("got %v, want default", got)
	}
	if got := DaysOrDefault(3, MaxWaitDays, DefaultWaitDays); got != 3 {
		t.Errorf("got %v, want 3", got)
	}
}

func TestDaysToDuration(t *testing.T) {
	if got := DaysToDuration(7); got != 7*24*time.Hour {
		t.Errorf("got %v", got)
	}
	if got := DaysToDuration(0.5); got != 12*time.Hour {
		t.Errorf("got %v", got)
	}
}

func TestState(t *testing.T) {
	for _, s := range []State{StateCompleted, StateCancelled, StateFailed} {
		if !s.IsTerminal() || s.Cancellable() {
			t.Errorf("%s should be terminal and not cancellable", s)
		}
	}
	for _, s := range []State{StateCreated, StateNotifying, StateSleeping} {
		if s.IsTerminal() || !s.Cancellable() {
			t.Errorf("%s should be cancellable", s)
		}
	}
	if StateReleasing.Cancellable() || StateReleasing.IsTerminal() {
		t.Error("releasing must be neither cancellable nor terminal")
	}
	if State("bogus").IsValid() {
		t.Error("bogus state reported valid")
	}
}
