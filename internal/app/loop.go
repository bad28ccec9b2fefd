package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/logger"
)

// DefaultPollTimeout is how long the loop waits for input between frames.
const DefaultPollTimeout = 3 * time.Second

// Action is what the user asked for while the loop waited for input.
type Action int

const (
	// ActionNone means the poll timed out.
	ActionNone Action = iota
	ActionRedraw
	ActionRefresh
	ActionExport
	ActionQuit
)

// Renderer draws one frame from a snapshot. It must not block longer than a
// frame.
type Renderer interface {
	Draw(s Snapshot)
}

// Noticer is implemented by renderers that can show a transient message.
type Noticer interface {
	Notice(msg string)
}

// Input waits up to timeout for the next user action.
type Input interface {
	Wait(ctx context.Context, timeout time.Duration) (Action, error)
}

// Exporter writes a snapshot somewhere and returns what it wrote.
type Exporter interface {
	Export(s Snapshot) ([]string, error)
}

// Loop is the render/input loop. It never performs sensor I/O and only holds
// the App lock while copying a snapshot.
type Loop struct {
	app      *App
	renderer Renderer
	input    Input
	exporter Exporter
	poll     time.Duration
	gate     *reconnectGate
	now      func() time.Time
	log      *logger.Logger

	// connectBusy is set from submitting a Connect until the worker has
	// finished it.
	connectBusy atomic.Bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithPollTimeout sets the input wait, which is also the redraw cadence and
// the base reconnect delay.
func WithPollTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithReconnectMax caps the reconnect back-off.
func WithReconnectMax(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.gate.max = d
		}
	}
}

// WithExporter enables the export action.
func WithExporter(e Exporter) LoopOption {
	return func(l *Loop) {
		l.exporter = e
	}
}

// NewLoop returns a loop drawing app with renderer and reading input.
func NewLoop(app *App, renderer Renderer, input Input, log *logger.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		app:      app,
		renderer: renderer,
		input:    input,
		poll:     DefaultPollTimeout,
		gate:     newReconnectGate(DefaultPollTimeout, 30*time.Second),
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.gate.base = l.poll
	if l.gate.max < l.gate.base {
		l.gate.max = l.gate.base
	}
	return l
}

// Run draws and polls until the user quits or ctx is done. Only input
// (terminal) errors are returned.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		snap := l.app.Snapshot()
		l.renderer.Draw(snap)
		l.maybeReconnect(snap.Status)

		action, err := l.input.Wait(ctx, l.poll)
		if err != nil {
			return errors.Wrap(err, "waiting for input")
		}

		switch action {
		case ActionQuit:
			l.log.Infow("quit requested")
			return nil
		case ActionRefresh:
			l.submit(IntentRefreshCurrent)
			l.submit(IntentRefreshHistory)
		case ActionExport:
			l.export(snap)
		}
	}
}

func (l *Loop) maybeReconnect(status Status) {
	if status.Connected() {
		l.gate.Reset()
		return
	}
	if status == StatusConnecting || l.connectBusy.Load() {
		l.gate.Hold(l.now())
		return
	}
	if !l.gate.Allow(l.now()) {
		return
	}
	l.log.Debugw("trying to connect", "status", status.String())
	l.submitConnect()
}

// submitConnect queues at most one Connect at a time.
func (l *Loop) submitConnect() {
	if !l.connectBusy.CompareAndSwap(false, true) {
		return
	}
	in := Intent{Kind: IntentConnect, done: func() { l.connectBusy.Store(false) }}
	if err := l.app.queue.TrySubmit(in); err != nil {
		l.connectBusy.Store(false)
		l.log.Warnw("could not queue intent", "intent", IntentConnect, "err", err)
	}
}

// submit never blocks; a refused intent is logged and the loop keeps
// rendering stale data.
func (l *Loop) submit(kind IntentKind) {
	if err := l.app.Submit(kind); err != nil {
		l.log.Warnw("could not queue intent", "intent", kind, "err", err)
	}
}

func (l *Loop) export(snap Snapshot) {
	if l.exporter == nil {
		return
	}
	paths, err := l.exporter.Export(snap)
	if err != nil {
		l.log.Errorw("export failed", "err", err)
		l.notice(fmt.Sprintf("Export failed: %v", err))
		return
	}
	l.log.Infow("exported readings", "files", paths)
	l.notice("Exported " + strings.Join(paths, ", "))
}

func (l *Loop) notice(msg string) {
	if n, ok := l.renderer.(Noticer); ok {
		n.Notice(msg)
	}
}
