package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

func autoClock() (*testclock.Clock, *testclock.AutoAdvancingClock) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return clk, &testclock.AutoAdvancingClock{Clock: clk, Advance: clk.Advance}
}

func TestDoStopsOnSuccess(t *testing.T) {
	_, clk := autoClock()
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Clock: clk}, func(int) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	base, clk := autoClock()
	start := base.Now()
	calls := 0
	last := errors.New("third")
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Clock: clk}, func(attempt int) error {
		calls++
		if attempt == 3 {
			return last
		}
		return errors.New("earlier")
	}, nil, nil)
	if !errors.Is(err, last) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if elapsed := base.Now().Sub(start); elapsed != 300*time.Millisecond {
		t.Fatalf("expected 100ms+200ms backoff, got %s", elapsed)
	}
}

func TestDoStopsOnFatal(t *testing.T) {
	_, clk := autoClock()
	fatalErr := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Second, Clock: clk}, func(int) error {
		calls++
		return fatalErr
	}, func(err error) bool { return errors.Is(err, fatalErr) }, nil)
	if !errors.Is(err, fatalErr) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestDoHonoursCancelledContext(t *testing.T) {
	_, clk := autoClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Second, Clock: clk}, func(int) error {
		t.Fatalf("unexpected call")
		return nil
	}, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoValidatesPolicy(t *testing.T) {
	if err := Do(context.Background(), Policy{}, func(int) error { return nil }, nil, nil); !errors.Is(err, errInvalidAttempts) {
		t.Fatalf("expected invalid attempts error, got %v", err)
	}
	if err := Do(context.Background(), Policy{MaxAttempts: 1}, nil, nil, nil); !errors.Is(err, errMissingFunc) {
		t.Fatalf("expected missing func error, got %v", err)
	}
}
