// Package location tracks where the sensor is, either from a GPS receiver or
// from a fixed position in the configuration.
package location

import (
	"fmt"
	"sync"
	"time"
)

// Fix is a single position report.
type Fix struct {
	Latitude  float64
	Longitude float64
	Elevation float64
	HDOP      float64
	At        time.Time
}

// Status is the state of the position source.
type Status int

const (
	// StatusNone means no GPS receiver is configured.
	StatusNone Status = iota
	StatusDetecting
	StatusFailed
	StatusNoFix
	StatusFix
	// StatusStatic means the position came from the configuration.
	StatusStatic
)

func (s Status) String() string {
	switch s {
	case StatusDetecting:
		return "detecting"
	case StatusFailed:
		return "failed"
	case StatusNoFix:
		return "no_fix"
	case StatusFix:
		return "fix"
	case StatusStatic:
		return "static"
	default:
		return "none"
	}
}

// State holds the latest position in a thread-safe manner.
type State struct {
	mu         sync.RWMutex
	current    Fix
	hasFix     bool
	status     Status
	quality    int
	satellites int
	inView     int
	attempts   int
}

// NewState returns a state with no position source.
func NewState() *State {
	return &State{}
}

// NewStatic returns a state pinned to lat/lon.
func NewStatic(lat, lon float64) *State {
	return &State{
		current: Fix{Latitude: lat, Longitude: lon},
		hasFix:  true,
		status:  StatusStatic,
	}
}

// Current returns the last known position. ok is false before the first fix.
func (s *State) Current() (Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.hasFix
}

// Status returns the source status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Describe renders the status bar text for the position source.
func (s *State) Describe() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.status {
	case StatusDetecting:
		return "GPS: Detecting..."
	case StatusFailed:
		return "GPS: FAILED"
	case StatusNoFix:
		if s.attempts > 0 {
			return fmt.Sprintf("GPS: Reconnecting (attempt %d)", s.attempts)
		}
		return fmt.Sprintf("GPS: No Fix (%d / %d)", s.inView, s.satellites)
	case StatusFix:
		return fmt.Sprintf("GPS: Fix (%.4f, %.4f) Q:%d %d / %d",
			s.current.Latitude, s.current.Longitude, s.quality, s.inView, s.satellites)
	case StatusStatic:
		return fmt.Sprintf("Location: (%.4f, %.4f)", s.current.Latitude, s.current.Longitude)
	default:
		return ""
	}
}

func (s *State) setFix(f Fix, quality, satellites, inView int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = f
	s.hasFix = true
	s.quality = quality
	s.satellites = satellites
	s.inView = inView
	s.status = StatusFix
}

func (s *State) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// setConnected records whether the receiver port is open. A lost receiver
// keeps its last fix but counts reconnect attempts.
func (s *State) setConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if connected {
		s.attempts = 0
		return
	}
	s.attempts++
	s.status = StatusNoFix
}
