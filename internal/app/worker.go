package app

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/logger"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

// DefaultIOTimeout bounds a single transport call.
const DefaultIOTimeout = 20 * time.Second

// Worker is the only consumer of the queue and the only writer of App state.
// All sensor I/O happens on the worker goroutine, one intent at a time.
//
// Read failures never change the status. Once Connected, a link that drops
// silently (a BLE peer walking out of range, say) keeps showing Connected
// with the last good reading, and no reconnect is attempted until restart.
// Transports that can recover, like Serial, reopen on the next read.
type Worker struct {
	app       *App
	queue     *Queue
	transport sensor.Transport
	address   string
	timeout   time.Duration
	observers []Observer
	log       *logger.Logger

	conn sensor.Conn
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithIOTimeout bounds each transport call.
func WithIOTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithObservers registers observers notified after state changes.
func WithObservers(obs ...Observer) WorkerOption {
	return func(w *Worker) {
		w.observers = append(w.observers, obs...)
	}
}

// NewWorker returns a worker draining queue into app using transport.
// address is passed to every connect; empty means discovery by name.
func NewWorker(app *App, queue *Queue, transport sensor.Transport, address string, log *logger.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		app:       app,
		queue:     queue,
		transport: transport,
		address:   address,
		timeout:   DefaultIOTimeout,
		log:       log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes intents in submission order until the queue is closed or ctx
// is done. Transport failures never end the loop.
func (w *Worker) Run(ctx context.Context) {
	defer w.closeConn()

	for {
		in, ok := w.queue.Next(ctx)
		if !ok {
			w.log.Debugw("worker stopped")
			return
		}
		if in.dequeued != nil {
			in.dequeued()
		}
		w.handle(ctx, in)
		if in.done != nil {
			in.done()
		}
	}
}

func (w *Worker) handle(ctx context.Context, in Intent) {
	switch in.Kind {
	case IntentConnect:
		w.connect(ctx)
	case IntentRefreshCurrent:
		w.refreshCurrent(ctx)
	case IntentRefreshHistory:
		w.refreshHistory(ctx)
	default:
		w.log.Warnw("ignoring unknown intent", "kind", int(in.Kind))
	}
}

func (w *Worker) connect(ctx context.Context) {
	if w.app.Status().Connected() {
		w.log.Debugw("connect skipped, already connected")
		return
	}

	if !w.transition(StatusConnecting) {
		return
	}
	w.closeConn()

	w.log.Infow("connecting to sensor", "address", w.address)
	conn, err := w.connectTransport(ctx)
	if err != nil {
		w.log.Warnw("sensor connection failed", "address", w.address, "err", err)
		w.transition(StatusConnectionFailed)
		return
	}

	w.conn = conn
	w.transition(StatusConnected)
	w.log.Infow("sensor connected")

	// Show live data together with "Connected".
	w.refreshCurrent(ctx)
	w.refreshHistory(ctx)
}

func (w *Worker) connectTransport(ctx context.Context) (sensor.Conn, error) {
	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	conn, err := w.transport.Connect(cctx, w.address)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("transport returned no connection")
	}
	return conn, nil
}

func (w *Worker) refreshCurrent(ctx context.Context) {
	if w.conn == nil || !w.app.Status().Connected() {
		w.log.Debugw("refresh skipped, not connected", "intent", IntentRefreshCurrent)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	r, err := w.conn.ReadCurrent(cctx)
	cancel()
	if err != nil {
		w.log.Warnw("reading current values failed, keeping cached reading", "err", err)
		return
	}

	w.app.storeCurrent(r)
	w.log.Debugw("current reading updated", "co2", r.CO2, "temperature", r.Temperature)
	for _, o := range w.observers {
		o.ReadingUpdated(r)
	}
}

func (w *Worker) refreshHistory(ctx context.Context) {
	if w.conn == nil || !w.app.Status().Connected() {
		w.log.Debugw("refresh skipped, not connected", "intent", IntentRefreshHistory)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	h, err := w.conn.ReadHistory(cctx)
	cancel()
	if err != nil {
		// History is best effort.
		w.log.Debugw("history refresh failed", "err", err)
		return
	}

	w.app.storeHistory(h)
	w.log.Debugw("history updated", "samples", h.Len())
}

// transition applies an allowed status edge and notifies observers.
func (w *Worker) transition(to Status) bool {
	from, ok := w.app.setStatus(to)
	if !ok {
		w.log.Errorw("refusing status transition", "from", from.String(), "to", to.String())
		return false
	}
	for _, o := range w.observers {
		o.StatusChanged(from, to)
	}
	return true
}

func (w *Worker) closeConn() {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		w.log.Debugw("closing sensor connection", "err", err)
	}
	w.conn = nil
}
