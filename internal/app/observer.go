package app

import "github.com/storskegg/aranet-dash/internal/sensor"

// Observer is told about state changes after the worker has applied them.
// Implementations must return quickly; they run on the worker goroutine.
type Observer interface {
	StatusChanged(from, to Status)
	ReadingUpdated(r sensor.Reading)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) StatusChanged(from, to Status)   {}
func (NopObserver) ReadingUpdated(r sensor.Reading) {}
