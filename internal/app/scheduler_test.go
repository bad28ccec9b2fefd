package app

import (
	"context"
	"testing"
	"time"

	"github.com/storskegg/aranet-dash/internal/logger"
)

func countKind(q *Queue, kind IntentKind) int {
	n := 0
	for q.Len() > 0 {
		in, ok := q.Next(context.Background())
		if !ok {
			break
		}
		if in.Kind == kind {
			n++
		}
	}
	return n
}

func TestSchedulerStallYieldsSingleCatchUp(t *testing.T) {
	q := NewQueue(DefaultQueueSize)
	s := NewScheduler(q, time.Minute, logger.Nop())

	// Three periods elapse while the worker is busy.
	for i := 0; i < 3; i++ {
		if err := s.tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	if q.Len() != 2 {
		t.Fatalf("queued = %d, want one of each refresh kind", q.Len())
	}
	if n := countKind(q, IntentRefreshCurrent); n != 1 {
		t.Fatalf("RefreshCurrent queued %d times, want 1", n)
	}
}

func TestSchedulerTokenResetsOnDequeue(t *testing.T) {
	q := NewQueue(DefaultQueueSize)
	s := NewScheduler(q, time.Minute, logger.Nop())

	if err := s.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	for q.Len() > 0 {
		in, _ := q.Next(context.Background())
		in.dequeued()
	}
	if err := s.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("queued = %d after dequeue, want 2", q.Len())
	}
}

func TestSchedulerFullQueueDropsTick(t *testing.T) {
	q := NewQueue(1)
	if err := q.TrySubmit(NewIntent(IntentConnect)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s := NewScheduler(q, time.Minute, logger.Nop())

	if err := s.tick(); err != nil {
		t.Fatalf("full queue must not stop the scheduler: %v", err)
	}
	for _, k := range s.kinds {
		if s.pending[k].Load() {
			t.Fatalf("token for %v kept after a refused submit", k)
		}
	}

	// Once there is room the next tick gets through.
	in, _ := q.Next(context.Background())
	if in.Kind != IntentConnect {
		t.Fatalf("unexpected intent %v", in.Kind)
	}
	if err := s.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("queued = %d, want 1", q.Len())
	}
}

func TestSchedulerRunStops(t *testing.T) {
	t.Run("context", func(t *testing.T) {
		s := NewScheduler(NewQueue(4), time.Minute, logger.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.run(ctx, make(chan time.Time))
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("scheduler did not stop on cancel")
		}
	})

	t.Run("closed queue", func(t *testing.T) {
		q := NewQueue(4)
		q.Close()
		s := NewScheduler(q, time.Minute, logger.Nop())
		ticks := make(chan time.Time, 1)
		ticks <- time.Now()

		done := make(chan struct{})
		go func() {
			s.run(context.Background(), ticks)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("scheduler did not stop on a closed queue")
		}
	})
}

func TestSchedulerDefaultPeriod(t *testing.T) {
	if s := NewScheduler(NewQueue(1), 0, logger.Nop()); s.period != DefaultRefreshPeriod {
		t.Fatalf("period = %v, want %v", s.period, DefaultRefreshPeriod)
	}
}
