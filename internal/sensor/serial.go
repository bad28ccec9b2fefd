package sensor

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	defaultBaudRate    = 115200
	serialReadTimeout  = 5 * time.Second
	serialReadCommand  = "READ"
	serialHistoryCmd   = "HISTORY"
	serialMaxLineBytes = 1024 * 1024
)

// Serial talks to a sensor that answers a line protocol on a serial port:
// the host writes READ or HISTORY, the device answers with a single JSON
// line, or {"error": "..."}.
type Serial struct {
	baudRate int
	product  string

	open func(path string, baudRate int) (io.ReadWriteCloser, error)
	list func() ([]*enumerator.PortDetails, error)
}

// NewSerial returns a serial transport. When Connect is called without an
// address, the first USB port whose product name contains product is used.
func NewSerial(baudRate int, product string) *Serial {
	if baudRate <= 0 {
		baudRate = defaultBaudRate
	}
	if product == "" {
		product = aranet4NamePrefix
	}
	return &Serial{
		baudRate: baudRate,
		product:  product,
		open:     openSerialPort,
		list:     enumerator.GetDetailedPortsList,
	}
}

// openSerialPort attempts to open a serial port with the given configuration
func openSerialPort(portPath string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

func (s *Serial) Connect(ctx context.Context, address string) (Conn, error) {
	path := address
	if path == "" {
		found, err := s.discover()
		if err != nil {
			return nil, err
		}
		path = found
	}

	conn := &serialConn{path: path, baudRate: s.baudRate, open: s.open}
	if err := conn.reopen(); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Serial) discover() (string, error) {
	ports, err := s.list()
	if err != nil {
		return "", errors.Wrap(err, "list serial ports")
	}
	needle := strings.ToLower(s.product)
	for _, p := range ports {
		if p.IsUSB && strings.Contains(strings.ToLower(p.Product), needle) {
			return p.Name, nil
		}
	}
	return "", errors.Wrapf(ErrSensorNotFound, "no serial port with product %q", s.product)
}

// serialConn keeps the port open between requests. A failed request drops the
// port and the next request opens it again.
type serialConn struct {
	path     string
	baudRate int
	open     func(path string, baudRate int) (io.ReadWriteCloser, error)

	port    io.ReadWriteCloser
	scanner *bufio.Scanner
}

type wireError struct {
	Error string `json:"error"`
}

type wireReading struct {
	Time        time.Time `json:"time"`
	CO2         int       `json:"co2"`
	Temperature float64   `json:"temperature"`
	Pressure    float64   `json:"pressure"`
	Humidity    float64   `json:"humidity"`
	Battery     int       `json:"battery"`
	Interval    int       `json:"interval"`
	Age         int       `json:"age"`
}

func (w wireReading) reading(capturedAt time.Time) Reading {
	if !w.Time.IsZero() {
		capturedAt = w.Time.UTC()
	}
	return Reading{
		CO2:         w.CO2,
		Temperature: w.Temperature,
		Pressure:    w.Pressure,
		Humidity:    w.Humidity,
		Battery:     w.Battery,
		Interval:    time.Duration(w.Interval) * time.Second,
		Age:         time.Duration(w.Age) * time.Second,
		CapturedAt:  capturedAt,
	}
}

type wireHistory struct {
	Interval int           `json:"interval"`
	Samples  []wireReading `json:"samples"`
}

func (c *serialConn) ReadCurrent(ctx context.Context) (Reading, error) {
	var w wireReading
	if err := c.request(ctx, serialReadCommand, &w); err != nil {
		return Reading{}, err
	}
	return w.reading(time.Now().UTC()), nil
}

func (c *serialConn) ReadHistory(ctx context.Context) (History, error) {
	var w wireHistory
	if err := c.request(ctx, serialHistoryCmd, &w); err != nil {
		return History{}, err
	}
	h := History{
		Interval: time.Duration(w.Interval) * time.Second,
		Samples:  make([]Reading, 0, len(w.Samples)),
	}
	for _, s := range w.Samples {
		h.Samples = append(h.Samples, s.reading(time.Time{}))
	}
	return h, nil
}

func (c *serialConn) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.scanner = nil
	return err
}

func (c *serialConn) reopen() error {
	port, err := c.open(c.path, c.baudRate)
	if err != nil {
		return errors.Wrapf(err, "open serial port %s", c.path)
	}
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 64*1024), serialMaxLineBytes)
	c.port = port
	c.scanner = scanner
	return nil
}

// request writes command and decodes the single line answer into v.
func (c *serialConn) request(ctx context.Context, command string, v any) error {
	if c.port == nil {
		if err := c.reopen(); err != nil {
			return err
		}
	}

	port, scanner := c.port, c.scanner
	line, err := callContext(ctx, func() ([]byte, error) {
		if _, err := io.WriteString(port, command+"\n"); err != nil {
			return nil, err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return append([]byte(nil), scanner.Bytes()...), nil
	})
	if err != nil {
		c.Close()
		return errors.Wrapf(err, "%s on %s", command, c.path)
	}

	var werr wireError
	if err := json.Unmarshal(line, &werr); err != nil {
		return errors.Wrapf(err, "malformed %s reply", command)
	}
	if werr.Error != "" {
		return errors.Errorf("sensor rejected %s: %s", command, werr.Error)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return errors.Wrapf(err, "malformed %s reply", command)
	}
	return nil
}
