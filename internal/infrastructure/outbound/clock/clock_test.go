package clock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/clientmock/internal/testutil"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := clock.New().Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClock_SleepContext(t *testing.T) {
	clk := clock.New()

	start := time.Now()
	if err := clk.SleepContext(context.Background(), 50*time.Millisecond); err != nil {
		t.Errorf("SleepContext returned unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("SleepContext returned too early: %v", elapsed)
	}

	if err := clk.SleepContext(context.Background(), 0); err != nil {
		t.Errorf("zero sleep returned %v", err)
	}
}

func TestRealClock_SleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, d := range []time.Duration{0, 10 * time.Second} {
		if err := clock.New().SleepContext(ctx, d); !errors.Is(err, context.Canceled) {
			t.Errorf("SleepContext(%v): expected context.Canceled, got %v", d, err)
		}
	}
}

func TestNowFunc(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	if got := clock.NowFunc(&testutil.FixedClock{T: fixed})(); !got.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, got)
	}
	if clock.NowFunc(nil)().IsZero() {
		t.Error("nil clock should fall back to time.Now")
	}
}
