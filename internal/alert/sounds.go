// Package alert plays short tones when the sensor link changes state or the
// air quality gets bad.
package alert

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/logger"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

// CO2 level that triggers the warning tone when crossed from below.
const co2Warning = 1400

type tone struct {
	freq float64
	ms   int
}

var (
	connectedTones  = []tone{{600, 150}, {800, 150}}
	disconnectTones = []tone{{400, 300}}
	retryTones      = []tone{{600, 100}}
	co2Tones        = []tone{{1000, 200}, {1000, 200}, {1000, 200}}
)

const toneGap = 50 * time.Millisecond

// Sounds is an app.Observer playing tones. Tones never block the caller.
type Sounds struct {
	log *logger.Logger

	beep  func(freq float64, ms int) error
	spawn func(func())
	pause func(time.Duration)

	mu       sync.Mutex
	failures int
	lastCO2  int
}

var _ app.Observer = (*Sounds)(nil)

// NewSounds returns an observer beeping through the system speaker.
func NewSounds(log *logger.Logger) *Sounds {
	return &Sounds{
		log:   log,
		beep:  beeep.Beep,
		spawn: func(f func()) { go f() },
		pause: time.Sleep,
	}
}

// StatusChanged plays the connected melody, a long low tone on the first
// failure and a short blip on each further failed attempt.
func (s *Sounds) StatusChanged(from, to app.Status) {
	s.mu.Lock()
	var tones []tone
	switch to {
	case app.StatusConnected:
		s.failures = 0
		tones = connectedTones
	case app.StatusConnectionFailed:
		s.failures++
		if s.failures == 1 {
			tones = disconnectTones
		} else {
			tones = retryTones
		}
	}
	s.mu.Unlock()

	s.play(tones)
}

// ReadingUpdated warns when CO2 rises past the warning level.
func (s *Sounds) ReadingUpdated(r sensor.Reading) {
	s.mu.Lock()
	crossed := r.CO2 >= co2Warning && s.lastCO2 < co2Warning
	s.lastCO2 = r.CO2
	s.mu.Unlock()

	if crossed {
		s.play(co2Tones)
	}
}

func (s *Sounds) play(tones []tone) {
	if len(tones) == 0 {
		return
	}
	s.spawn(func() {
		for i, t := range tones {
			if i > 0 {
				s.pause(toneGap)
			}
			if err := s.beep(t.freq, t.ms); err != nil {
				s.log.Debugw("beep failed", "err", err)
				return
			}
		}
	})
}
