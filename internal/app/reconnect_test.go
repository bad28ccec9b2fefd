package app

import (
	"testing"
	"time"
)

func TestReconnectGateBackoff(t *testing.T) {
	clock := newFakeClock()
	g := newReconnectGate(time.Second, 3*time.Second)

	if !g.Allow(clock.Now()) {
		t.Fatalf("first attempt should be allowed")
	}
	if g.Allow(clock.Now()) {
		t.Fatalf("second attempt at the same instant should wait")
	}

	// attempt n waits base*n, capped.
	waits := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, d := range waits {
		clock.Advance(d - time.Millisecond)
		if g.Allow(clock.Now()) {
			t.Fatalf("attempt %d allowed before %v elapsed", i+2, d)
		}
		clock.Advance(time.Millisecond)
		if !g.Allow(clock.Now()) {
			t.Fatalf("attempt %d not allowed after %v", i+2, d)
		}
	}
}

func TestReconnectGateReset(t *testing.T) {
	clock := newFakeClock()
	g := newReconnectGate(time.Second, time.Minute)

	for i := 0; i < 5; i++ {
		g.Allow(clock.Now())
		clock.Advance(time.Minute)
	}
	g.Reset()
	if !g.Allow(clock.Now()) {
		t.Fatalf("reset gate should allow immediately")
	}
	clock.Advance(time.Second)
	if !g.Allow(clock.Now()) {
		t.Fatalf("after reset the delay should start from base again")
	}
}

func TestReconnectGateMaxBelowBase(t *testing.T) {
	g := newReconnectGate(2*time.Second, time.Second)
	if g.max != 2*time.Second {
		t.Fatalf("max = %v, want it raised to base", g.max)
	}
}

func TestReconnectGateHoldCountsFromEndOfAttempt(t *testing.T) {
	clock := newFakeClock()
	g := newReconnectGate(time.Second, time.Minute)

	g.Allow(clock.Now())
	g.Allow(clock.Now().Add(time.Second))

	// The second attempt is still running five seconds later.
	clock.Advance(5 * time.Second)
	g.Hold(clock.Now())

	clock.Advance(2*time.Second - time.Millisecond)
	if g.Allow(clock.Now()) {
		t.Fatalf("attempt allowed before the back-off elapsed after the last attempt ended")
	}
	clock.Advance(time.Millisecond)
	if !g.Allow(clock.Now()) {
		t.Fatalf("attempt not allowed once the back-off elapsed")
	}
}
