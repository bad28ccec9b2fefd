package sensor

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrHistoryUnsupported is returned by connections that cannot fetch a
	// historical series from the device itself.
	ErrHistoryUnsupported = errors.New("sensor does not provide history")

	// ErrSensorNotFound is returned when discovery by name finds no device.
	ErrSensorNotFound = errors.New("sensor not found")
)

// Reading is one set of values captured from the sensor.
// The zero value is the "nothing read yet" reading.
type Reading struct {
	CO2         int           `json:"co2"`         // ppm
	Temperature float64       `json:"temperature"` // °C
	Pressure    float64       `json:"pressure"`    // hPa
	Humidity    float64       `json:"humidity"`    // %RH
	Battery     int           `json:"battery"`     // percent
	Interval    time.Duration `json:"interval"`    // device measurement interval
	Age         time.Duration `json:"age"`         // time since the device measured
	CapturedAt  time.Time     `json:"captured_at"`
}

// IsZero reports whether r is the empty default reading.
func (r Reading) IsZero() bool {
	return r == Reading{}
}

// History is an ordered series of readings, oldest first.
// A History is never mutated after it has been handed out.
type History struct {
	Interval time.Duration `json:"interval"`
	Samples  []Reading     `json:"samples"`
}

// Len returns the number of samples.
func (h History) Len() int {
	return len(h.Samples)
}

// Series extracts one value per sample using the given accessor.
func (h History) Series(value func(Reading) float64) []float64 {
	out := make([]float64, len(h.Samples))
	for i, s := range h.Samples {
		out[i] = value(s)
	}
	return out
}

// Accessors used when plotting or exporting a single series.
var (
	CO2Of         = func(r Reading) float64 { return float64(r.CO2) }
	TemperatureOf = func(r Reading) float64 { return r.Temperature }
	PressureOf    = func(r Reading) float64 { return r.Pressure }
	HumidityOf    = func(r Reading) float64 { return r.Humidity }
)
