package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/logger"
)

// DefaultRefreshPeriod is the fixed refresh cadence.
const DefaultRefreshPeriod = 120 * time.Second

// Scheduler submits refresh intents at a fixed period. At most one scheduled
// intent of each kind waits in the queue; ticks that arrive while one is still
// pending are skipped, so a stalled worker gets a single catch-up refresh
// rather than a burst.
type Scheduler struct {
	queue  *Queue
	period time.Duration
	kinds  []IntentKind
	log    *logger.Logger

	pending map[IntentKind]*atomic.Bool
}

// NewScheduler returns a scheduler submitting RefreshCurrent and
// RefreshHistory every period.
func NewScheduler(queue *Queue, period time.Duration, log *logger.Logger) *Scheduler {
	if period <= 0 {
		period = DefaultRefreshPeriod
	}
	kinds := []IntentKind{IntentRefreshCurrent, IntentRefreshHistory}
	pending := make(map[IntentKind]*atomic.Bool, len(kinds))
	for _, k := range kinds {
		pending[k] = new(atomic.Bool)
	}
	return &Scheduler{
		queue:   queue,
		period:  period,
		kinds:   kinds,
		log:     log,
		pending: pending,
	}
}

// Run ticks until ctx is done or the queue is closed.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.period)
	defer t.Stop()
	s.run(ctx, t.C)
}

func (s *Scheduler) run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if err := s.tick(); errors.Is(err, ErrQueueClosed) {
				s.log.Debugw("scheduler stopped, queue closed")
				return
			}
		}
	}
}

func (s *Scheduler) tick() error {
	for _, kind := range s.kinds {
		if err := s.submit(kind); errors.Is(err, ErrQueueClosed) {
			return err
		}
	}
	return nil
}

func (s *Scheduler) submit(kind IntentKind) error {
	pending := s.pending[kind]
	if !pending.CompareAndSwap(false, true) {
		s.log.Debugw("skipping tick, previous refresh still queued", "intent", kind)
		return nil
	}

	in := Intent{Kind: kind, dequeued: func() { pending.Store(false) }}
	if err := s.queue.TrySubmit(in); err != nil {
		pending.Store(false)
		if !errors.Is(err, ErrQueueClosed) {
			s.log.Warnw("dropping scheduled refresh", "intent", kind, "err", err)
		}
		return err
	}
	return nil
}
