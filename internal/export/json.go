package export

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/location"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

type reading struct {
	CO2         int       `json:"co2_ppm"`
	Temperature float64   `json:"temperature_c"`
	Pressure    float64   `json:"pressure_hpa"`
	Humidity    float64   `json:"humidity_pct"`
	Battery     int       `json:"battery_pct,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

type position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation,omitempty"`
}

type document struct {
	Sensor     string     `json:"sensor,omitempty"`
	Status     string     `json:"status"`
	ExportedAt time.Time  `json:"exported_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	Current    reading    `json:"current"`
	Location   *position  `json:"location,omitempty"`
	// History is null when it was never fetched and [] when it is empty.
	History         []reading `json:"history"`
	HistoryInterval string    `json:"history_interval,omitempty"`
}

func toReading(r sensor.Reading) reading {
	return reading{
		CO2:         r.CO2,
		Temperature: r.Temperature,
		Pressure:    r.Pressure,
		Humidity:    r.Humidity,
		Battery:     r.Battery,
		CapturedAt:  r.CapturedAt,
	}
}

func writeJSON(w io.Writer, name string, snap app.Snapshot, fix *location.Fix) error {
	doc := document{
		Sensor:     name,
		Status:     snap.Status.String(),
		ExportedAt: snap.TakenAt,
		Current:    toReading(snap.Current),
	}
	if !snap.CurrentAt.IsZero() {
		at := snap.CurrentAt
		doc.UpdatedAt = &at
	}
	if fix != nil {
		doc.Location = &position{Latitude: fix.Latitude, Longitude: fix.Longitude, Elevation: fix.Elevation}
	}
	if snap.HasHistory {
		doc.History = make([]reading, 0, snap.History.Len())
		for _, r := range snap.History.Samples {
			doc.History = append(doc.History, toReading(r))
		}
		if snap.History.Interval > 0 {
			doc.HistoryInterval = snap.History.Interval.String()
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
