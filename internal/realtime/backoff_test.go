package realtime

import (
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	base, max := 2*time.Second, 10*time.Second
	expected := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, want := range expected {
		if got := Delay(base, max, attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}

	// large attempts must not overflow
	if got := Delay(base, max, 200); got != max {
		t.Fatalf("expected cap %s, got %s", max, got)
	}
}

func TestBackoffMonotonic(t *testing.T) {
	b := NewBackoff(BackoffConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 3 * time.Second})

	var prev time.Duration
	for i := 0; i < 50; i++ {
		d, ok := b.Next()
		if !ok {
			t.Fatalf("unlimited backoff stopped at attempt %d", i)
		}
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %s < %s", i, d, prev)
		}
		if d > 3*time.Second {
			t.Fatalf("delay above cap at attempt %d: %s", i, d)
		}
		prev = d
	}
}

func TestBackoffMaxAttempts(t *testing.T) {
	b := NewBackoff(BackoffConfig{BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second, MaxAttempts: 5})

	for i := 0; i < 5; i++ {
		if _, ok := b.Next(); !ok {
			t.Fatalf("attempt %d refused", i)
		}
	}
	if _, ok := b.Next(); ok {
		t.Fatal("expected retries to be exhausted after 5 attempts")
	}
	if b.Attempt() != 5 {
		t.Fatalf("expected attempt 5, got %d", b.Attempt())
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(BackoffConfig{BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second, MaxAttempts: 5})

	b.Next()
	b.Next()
	b.Next()
	b.Reset()

	d, ok := b.Next()
	if !ok || d != 2*time.Second {
		t.Fatalf("expected first delay after reset, got %s ok=%v", d, ok)
	}
}
