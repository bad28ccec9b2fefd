package app

import (
	"time"

	"github.com/storskegg/aranet-dash/internal/sensor"
)

// Cache holds the last known good readings. It is not safe for concurrent use
// on its own; App guards it.
type Cache struct {
	current   sensor.Reading
	currentAt time.Time

	history    sensor.History
	hasHistory bool
	historyAt  time.Time
}

// Current returns the last cached reading, or the zero reading before the
// first successful refresh.
func (c *Cache) Current() sensor.Reading {
	return c.current
}

// History returns the last cached series. ok is false until a history fetch
// has succeeded, which is not the same as an empty series.
func (c *Cache) History() (h sensor.History, ok bool) {
	return c.history, c.hasHistory
}

// CurrentAt is when the current reading was last replaced.
func (c *Cache) CurrentAt() time.Time {
	return c.currentAt
}

// HistoryAt is when the history was last replaced.
func (c *Cache) HistoryAt() time.Time {
	return c.historyAt
}

func (c *Cache) setCurrent(r sensor.Reading, at time.Time) {
	c.current = r
	c.currentAt = at
}

func (c *Cache) setHistory(h sensor.History, at time.Time) {
	c.history = h
	c.hasHistory = true
	c.historyAt = at
}
