package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/logger"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

// Recorder wraps a transport so every current reading is stored, and serves
// history from the store when the sensor cannot provide it.
type Recorder struct {
	next   sensor.Transport
	store  *Store
	window time.Duration
	limit  int
	log    *logger.Logger
	now    func() time.Time
}

var _ sensor.Transport = (*Recorder)(nil)

// NewRecorder decorates next. window is the look-back for served history
// and limit caps its samples.
func NewRecorder(next sensor.Transport, store *Store, window time.Duration, limit int, log *logger.Logger) *Recorder {
	return &Recorder{
		next:   next,
		store:  store,
		window: window,
		limit:  limit,
		log:    log,
		now:    time.Now,
	}
}

// Connect connects through the wrapped transport.
func (r *Recorder) Connect(ctx context.Context, address string) (sensor.Conn, error) {
	conn, err := r.next.Connect(ctx, address)
	if err != nil {
		return nil, err
	}
	return &recordingConn{Conn: conn, rec: r}, nil
}

type recordingConn struct {
	sensor.Conn
	rec *Recorder
}

func (c *recordingConn) ReadCurrent(ctx context.Context) (sensor.Reading, error) {
	rd, err := c.Conn.ReadCurrent(ctx)
	if err != nil {
		return rd, err
	}
	// Storage problems never fail a read.
	if err := c.rec.store.Append(ctx, rd); err != nil {
		c.rec.log.Warnw("storing reading failed", "err", err)
	}
	return rd, nil
}

func (c *recordingConn) ReadHistory(ctx context.Context) (sensor.History, error) {
	h, err := c.Conn.ReadHistory(ctx)
	if !errors.Is(err, sensor.ErrHistoryUnsupported) {
		return h, err
	}

	samples, serr := c.rec.store.Recent(ctx, c.rec.now().Add(-c.rec.window), c.rec.limit)
	if serr != nil {
		c.rec.log.Warnw("loading stored history failed", "err", serr)
		return sensor.History{}, err
	}

	out := sensor.History{Samples: samples}
	if n := len(samples); n > 0 {
		out.Interval = samples[n-1].Interval
	}
	return out, nil
}
