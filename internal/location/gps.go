package location

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/storskegg/aranet-dash/internal/logger"
)

// Baud rates to try, most likely first.
var gpsBaudRates = []int{9600, 115200, 38400, 4800}

const (
	detectionWindow   = 2 * time.Second
	detectionAttempts = 3
	reconnectStep     = time.Second
	maxReconnectDelay = 5 * time.Second
)

// GPS reads NMEA sentences from a serial receiver into a State.
type GPS struct {
	port  string
	state *State
	log   *logger.Logger

	open func(path string, baud int) (io.ReadCloser, error)
	now  func() time.Time
}

// NewGPS returns a reader for the receiver at port.
func NewGPS(port string, state *State, log *logger.Logger) *GPS {
	return &GPS{
		port:  port,
		state: state,
		log:   log,
		open:  openGPSPort,
		now:   time.Now,
	}
}

func openGPSPort(path string, baud int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}

// Run detects the baud rate, then reads the receiver until ctx is done,
// reopening the port with a linear back-off whenever it drops.
func (g *GPS) Run(ctx context.Context) {
	g.state.setStatus(StatusDetecting)

	baud := g.autoBaud(ctx)
	if baud == 0 {
		if ctx.Err() == nil {
			g.log.Warnw("GPS baud rate detection failed, running without GPS", "port", g.port)
			g.state.setStatus(StatusFailed)
		}
		return
	}
	g.log.Infow("GPS receiver detected", "port", g.port, "baud", baud)
	g.state.setStatus(StatusNoFix)

	delay := reconnectStep
	for ctx.Err() == nil {
		port, err := g.open(g.port, baud)
		if err != nil {
			g.log.Debugw("GPS port open failed", "port", g.port, "err", err)
			g.state.setConnected(false)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay+reconnectStep, maxReconnectDelay)
			continue
		}

		g.state.setConnected(true)
		delay = reconnectStep

		stop := context.AfterFunc(ctx, func() { port.Close() })
		err = g.readLoop(port)
		stop()
		port.Close()

		if ctx.Err() != nil {
			return
		}
		g.log.Warnw("GPS receiver lost", "port", g.port, "err", err)
		g.state.setConnected(false)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (g *GPS) autoBaud(ctx context.Context) int {
	for attempt := 0; attempt < detectionAttempts; attempt++ {
		for _, baud := range gpsBaudRates {
			if ctx.Err() != nil {
				return 0
			}
			port, err := g.open(g.port, baud)
			if err != nil {
				continue
			}
			// Unblock the scanner once the window is over.
			t := time.AfterFunc(detectionWindow, func() { port.Close() })
			ok := detectValidNMEA(port, g.now().Add(detectionWindow), g.now)
			t.Stop()
			port.Close()
			if ok {
				return baud
			}
		}
	}
	return 0
}

// detectValidNMEA reports whether two parseable sentences arrive before
// deadline.
func detectValidNMEA(r io.Reader, deadline time.Time, now func() time.Time) bool {
	scanner := bufio.NewScanner(r)
	valid := 0
	for now().Before(deadline) && scanner.Scan() {
		if _, err := nmea.Parse(scanner.Text()); err == nil {
			valid++
			if valid >= 2 {
				return true
			}
		}
	}
	return false
}

func (g *GPS) readLoop(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 16384)

	p := &parser{state: g.state, now: g.now}
	for scanner.Scan() {
		p.parse(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// parser applies NMEA sentences to a State. Satellites in view are carried
// over from the last GSV sequence.
type parser struct {
	state  *State
	now    func() time.Time
	inView int
}

func (p *parser) parse(line string) {
	s, err := nmea.Parse(line)
	if err != nil {
		return
	}

	switch m := s.(type) {
	case nmea.GGA:
		p.handleGGA(m)
	case nmea.RMC:
		p.handleRMC(m)
	case nmea.GSV:
		// NumberSVsInView is the total; it is only reliable on the first
		// message of a sequence.
		if m.MessageNumber == 1 {
			p.inView = int(m.NumberSVsInView)
		}
	}
}

func (p *parser) handleGGA(gga nmea.GGA) {
	quality := parseFixQuality(gga.FixQuality)
	if quality == 0 {
		p.state.setStatus(StatusNoFix)
		return
	}
	p.state.setFix(Fix{
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Elevation: gga.Altitude,
		HDOP:      gga.HDOP,
		At:        p.now().UTC(),
	}, quality, int(gga.NumSatellites), p.inView)
}

// handleRMC is the fallback for receivers that do not send GGA.
func (p *parser) handleRMC(rmc nmea.RMC) {
	if rmc.Validity != nmea.ValidRMC {
		p.state.setStatus(StatusNoFix)
		return
	}
	p.state.setFix(Fix{
		Latitude:  rmc.Latitude,
		Longitude: rmc.Longitude,
		At:        p.now().UTC(),
	}, 1, 0, p.inView)
}

func parseFixQuality(q string) int {
	switch q {
	case nmea.GPS, nmea.DGPS, nmea.PPS, nmea.RTK, nmea.FRTK, nmea.EST:
		return int(q[0] - '0')
	default:
		return 0
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
