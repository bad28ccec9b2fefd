package app

import "time"

// reconnectGate spaces out Connect submissions with a linear back-off:
// after n consecutive attempts the next one waits base*n, capped at max.
type reconnectGate struct {
	base time.Duration
	max  time.Duration

	attempts int
	next     time.Time
}

func newReconnectGate(base, maxDelay time.Duration) *reconnectGate {
	if maxDelay < base {
		maxDelay = base
	}
	return &reconnectGate{base: base, max: maxDelay}
}

// Allow reports whether a Connect may be submitted at now and, if so, books
// the attempt.
func (g *reconnectGate) Allow(now time.Time) bool {
	if now.Before(g.next) {
		return false
	}
	g.attempts++
	g.next = now.Add(g.delay())
	return true
}

// Hold pushes the next attempt out while the current one is still queued or
// running, so the back-off counts from when it ends.
func (g *reconnectGate) Hold(now time.Time) {
	g.next = now.Add(g.delay())
}

// Reset clears the back-off once connected.
func (g *reconnectGate) Reset() {
	g.attempts = 0
	g.next = time.Time{}
}

func (g *reconnectGate) delay() time.Duration {
	d := g.base * time.Duration(g.attempts)
	if d > g.max {
		d = g.max
	}
	return d
}
