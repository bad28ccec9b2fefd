// Package app coordinates the sensor connection and the reading cache between
// the rendering loop and a single background worker.
package app

import (
	"sync"
	"time"

	"github.com/storskegg/aranet-dash/internal/sensor"
)

// Snapshot is an immutable copy of the shared state handed to the renderer.
type Snapshot struct {
	Status     Status
	Current    sensor.Reading
	CurrentAt  time.Time
	History    sensor.History
	HasHistory bool
	HistoryAt  time.Time
	TakenAt    time.Time
}

// App owns the connection status and the cache. Everything is guarded by a
// single mutex; only the Worker writes.
type App struct {
	mu     sync.Mutex
	status Status
	cache  Cache

	queue *Queue
	now   func() time.Time
}

// New returns an App submitting work to queue.
func New(queue *Queue) *App {
	return &App{
		queue: queue,
		now:   time.Now,
	}
}

// Status returns the current connection status.
func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Current returns the cached reading, never blocking on sensor I/O.
func (a *App) Current() sensor.Reading {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.Current()
}

// History returns the cached series and whether one was ever fetched.
func (a *App) History() (sensor.History, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.History()
}

// Snapshot copies the state under the lock.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.cache.History()
	return Snapshot{
		Status:     a.status,
		Current:    a.cache.Current(),
		CurrentAt:  a.cache.CurrentAt(),
		History:    h,
		HasHistory: ok,
		HistoryAt:  a.cache.HistoryAt(),
		TakenAt:    a.now(),
	}
}

// Submit hands an intent to the worker without blocking.
func (a *App) Submit(kind IntentKind) error {
	return a.queue.TrySubmit(NewIntent(kind))
}

// setStatus applies an allowed transition and returns the previous status.
// ok is false when the edge is not allowed; the status is left unchanged.
func (a *App) setStatus(to Status) (from Status, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	from = a.status
	if !from.CanTransition(to) {
		return from, false
	}
	a.status = to
	return from, true
}

func (a *App) storeCurrent(r sensor.Reading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.setCurrent(r, a.now())
}

func (a *App) storeHistory(h sensor.History) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.setHistory(h, a.now())
}
