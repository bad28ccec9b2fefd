package app

import (
	"context"
	"sync"
	"time"

	"github.com/storskegg/aranet-dash/internal/sensor"
)

// fakeTransport is a scripted sensor. Every call is recorded in order.
type fakeTransport struct {
	mu sync.Mutex

	connectErr error
	current    sensor.Reading
	currentErr error
	history    sensor.History
	historyErr error

	calls  []string
	closed int
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) Connect(ctx context.Context, address string) (sensor.Conn, error) {
	f.record("connect")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeConn{t: f}, nil
}

type fakeConn struct {
	t *fakeTransport
}

func (c *fakeConn) ReadCurrent(ctx context.Context) (sensor.Reading, error) {
	c.t.record("current")
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.t.current, c.t.currentErr
}

func (c *fakeConn) ReadHistory(ctx context.Context) (sensor.History, error) {
	c.t.record("history")
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.t.history, c.t.historyErr
}

func (c *fakeConn) Close() error {
	c.t.mu.Lock()
	c.t.closed++
	c.t.mu.Unlock()
	return nil
}

// edgeRecorder records status transitions and reading updates.
type edgeRecorder struct {
	mu       sync.Mutex
	edges    [][2]Status
	readings []sensor.Reading
}

func (r *edgeRecorder) StatusChanged(from, to Status) {
	r.mu.Lock()
	r.edges = append(r.edges, [2]Status{from, to})
	r.mu.Unlock()
}

func (r *edgeRecorder) ReadingUpdated(rd sensor.Reading) {
	r.mu.Lock()
	r.readings = append(r.readings, rd)
	r.mu.Unlock()
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// drain runs the worker over whatever is queued right now.
func drain(ctx context.Context, w *Worker) {
	for w.queue.Len() > 0 {
		in, ok := w.queue.Next(ctx)
		if !ok {
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

var officeReading = sensor.Reading{
	CO2:         450,
	Temperature: 21.5,
	Pressure:    1013,
	Humidity:    45,
	CapturedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}
