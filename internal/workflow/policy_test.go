package workflow

import (
	"testing"
	"time"

	"github.com/darmiel/lastword/internal/config"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
	}.normalized(ExhaustionFail)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{failures: 0, want: 0},
		{failures: 1, want: time.Second},
		{failures: 2, want: 2 * time.Second},
		{failures: 3, want: 4 * time.Second},
		{failures: 4, want: 5 * time.Second},
		{failures: 9, want: 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.failures); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.failures, got, tt.want)
		}
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := NotifyPolicy()
	if p.Exhausted(DefaultMaxAttempts - 1) {
		t.Error("budget must not be exhausted before the last attempt")
	}
	if !p.Exhausted(DefaultMaxAttempts) {
		t.Error("budget must be exhausted after the last attempt")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RetryConfig
		fallback ExhaustionPolicy
		want     ExhaustionPolicy
		wantErr  bool
	}{
		{name: "fallback", cfg: config.RetryConfig{}, fallback: ExhaustionContinue, want: ExhaustionContinue},
		{name: "explicit", cfg: config.RetryConfig{OnExhausted: "fail"}, fallback: ExhaustionContinue, want: ExhaustionFail},
		{name: "unknown", cfg: config.RetryConfig{OnExhausted: "retry"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PolicyFromConfig(tt.cfg, tt.fallback)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.OnExhausted != tt.want {
				t.Errorf("expected %s, got %s", tt.want, p.OnExhausted)
			}
			if p.MaxAttempts != DefaultMaxAttempts || p.BaseDelay != DefaultBaseDelay {
				t.Errorf("expected defaults to fill gaps, got %+v", p)
			}
		})
	}
}
