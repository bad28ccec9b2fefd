package tui

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/app"
)

// ErrScreenClosed is returned by Wait once the screen stops delivering events.
var ErrScreenClosed = errors.New("terminal screen closed")

// Keys pumps terminal events off the screen so the loop can wait for input
// with a timeout.
type Keys struct {
	screen tcell.Screen
	events chan tcell.Event

	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewKeys starts pumping events from screen. The pump ends after Close once
// the screen is finalised.
func NewKeys(screen tcell.Screen) *Keys {
	k := &Keys{
		screen:  screen,
		events:  make(chan tcell.Event, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go k.pump()
	return k
}

// Close stops delivering events. Call it before finalising the screen.
func (k *Keys) Close() {
	k.closeOnce.Do(func() { close(k.done) })
}

func (k *Keys) pump() {
	defer close(k.stopped)
	defer close(k.events)
	for {
		ev := k.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case k.events <- ev:
		case <-k.done:
			return
		}
	}
}

// Wait returns the next action, or app.ActionNone after timeout.
func (k *Keys) Wait(ctx context.Context, timeout time.Duration) (app.Action, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return app.ActionNone, nil
	case <-t.C:
		return app.ActionNone, nil
	case ev, ok := <-k.events:
		if !ok {
			return app.ActionNone, ErrScreenClosed
		}
		return k.actionFor(ev), nil
	}
}

func (k *Keys) actionFor(ev tcell.Event) app.Action {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return actionForKey(ev.Key(), ev.Rune())
	case *tcell.EventResize:
		k.screen.Sync()
		return app.ActionRedraw
	default:
		return app.ActionNone
	}
}

func actionForKey(key tcell.Key, r rune) app.Action {
	switch key {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return app.ActionQuit
	case tcell.KeyRune:
		switch r {
		case 'q', 'Q':
			return app.ActionQuit
		case 'r', 'R':
			return app.ActionRefresh
		case 'e', 'E':
			return app.ActionExport
		}
	}
	return app.ActionRedraw
}
