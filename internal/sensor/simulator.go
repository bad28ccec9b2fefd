package sensor

import (
	"context"
	"math"
	"sync"
	"time"
)

// Simulation constants
const (
	simBaseCO2       = 650.0  // ppm
	simCO2Swing      = 350.0  // ppm amplitude
	simBaseTempC     = 21.0   // °C
	simTempSwing     = 1.5    // °C amplitude
	simBasePressure  = 1013.0 // hPa
	simPressureSwing = 4.0    // hPa amplitude
	simBaseHumidity  = 45.0   // %RH
	simHumiditySwing = 8.0    // %RH amplitude
	simPeriodSteps   = 96     // steps per full cycle
	simHistorySize   = 288
)

// Simulated is an in-process sensor producing slowly drifting values. Each
// ReadCurrent advances one step and is remembered for ReadHistory.
type Simulated struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	step    int
	history *sampleRing
}

// NewSimulated returns a simulator reporting the given measurement interval.
func NewSimulated(interval time.Duration) *Simulated {
	return &Simulated{
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		history:  newSampleRing(simHistorySize),
	}
}

func (s *Simulated) Connect(ctx context.Context, address string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulated) ReadCurrent(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	phase := 2 * math.Pi * float64(s.step) / simPeriodSteps
	s.step++

	r := Reading{
		CO2:         int(math.Round(simBaseCO2 + simCO2Swing*math.Sin(phase))),
		Temperature: round1(simBaseTempC + simTempSwing*math.Sin(phase/2)),
		Pressure:    round1(simBasePressure + simPressureSwing*math.Cos(phase/3)),
		Humidity:    math.Round(simBaseHumidity + simHumiditySwing*math.Cos(phase)),
		Battery:     100,
		Interval:    s.interval,
		CapturedAt:  s.now(),
	}
	s.history.add(r)
	return r, nil
}

func (s *Simulated) ReadHistory(ctx context.Context) (History, error) {
	if err := ctx.Err(); err != nil {
		return History{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return History{Interval: s.interval, Samples: s.history.samples()}, nil
}

func (s *Simulated) Close() error {
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
