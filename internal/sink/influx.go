// Package sink forwards readings to InfluxDB.
package sink

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/config"
	"github.com/storskegg/aranet-dash/internal/logger"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

const defaultMeasurement = "aranet4"

type pointWriter interface {
	WritePoint(p *write.Point)
}

// Influx is an app.Observer writing one point per reading and per status
// change through the non-blocking write API.
type Influx struct {
	writer      pointWriter
	measurement string
	sensor      string
	log         *logger.Logger
	now         func() time.Time

	close func()
}

var _ app.Observer = (*Influx)(nil)

// NewInflux connects the async write API described by cfg. Write errors are
// logged in the background.
func NewInflux(cfg config.Influx, sensorName string, log *logger.Logger) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	go logErrors(writeAPI, log)

	i := newInflux(writeAPI, cfg.Measurement, sensorName, log)
	i.close = func() {
		writeAPI.Flush()
		client.Close()
	}
	return i
}

func newInflux(w pointWriter, measurement, sensorName string, log *logger.Logger) *Influx {
	if measurement == "" {
		measurement = defaultMeasurement
	}
	return &Influx{
		writer:      w,
		measurement: measurement,
		sensor:      sensorName,
		log:         log,
		now:         time.Now,
		close:       func() {},
	}
}

// logErrors ends when the client closes the write API.
func logErrors(w api.WriteAPI, log *logger.Logger) {
	for err := range w.Errors() {
		log.Warnw("influx write failed", "err", err)
	}
}

// ReadingUpdated writes r.
func (i *Influx) ReadingUpdated(r sensor.Reading) {
	i.writer.WritePoint(i.readingPoint(r))
}

// StatusChanged writes the new connection status.
func (i *Influx) StatusChanged(from, to app.Status) {
	p := influxdb2.NewPoint(i.measurement+"_status",
		i.tags(),
		map[string]interface{}{
			"status":    to.String(),
			"connected": to.Connected(),
		},
		i.now())
	i.writer.WritePoint(p)
}

// Close flushes pending points and closes the client.
func (i *Influx) Close() {
	i.close()
}

func (i *Influx) readingPoint(r sensor.Reading) *write.Point {
	ts := r.CapturedAt
	if ts.IsZero() {
		ts = i.now()
	}
	fields := map[string]interface{}{
		"co2":         r.CO2,
		"temperature": r.Temperature,
		"pressure":    r.Pressure,
		"humidity":    r.Humidity,
	}
	if r.Battery > 0 {
		fields["battery"] = r.Battery
	}
	return influxdb2.NewPoint(i.measurement, i.tags(), fields, ts)
}

func (i *Influx) tags() map[string]string {
	if i.sensor == "" {
		return map[string]string{}
	}
	return map[string]string{"sensor": i.sensor}
}
