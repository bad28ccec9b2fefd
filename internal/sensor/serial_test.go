package sensor

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
)

// fakePort answers each written command with a scripted line.
type fakePort struct {
	replies map[string]string
	out     bytes.Buffer
	writes  []string
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.out.Len() == 0 {
		return 0, io.EOF
	}
	return p.out.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	cmd := strings.TrimSpace(string(b))
	p.writes = append(p.writes, cmd)
	if reply, ok := p.replies[cmd]; ok {
		p.out.WriteString(reply + "\n")
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newTestSerial(ports ...*fakePort) (*Serial, *int) {
	opened := 0
	s := NewSerial(0, "")
	s.open = func(path string, baudRate int) (io.ReadWriteCloser, error) {
		if opened >= len(ports) {
			return nil, errors.New("no more ports")
		}
		p := ports[opened]
		opened++
		return p, nil
	}
	return s, &opened
}

func TestSerialReadCurrent(t *testing.T) {
	port := &fakePort{replies: map[string]string{
		"READ": `{"co2":450,"temperature":21.5,"pressure":1013,"humidity":45,"battery":90,"interval":60,"age":7}`,
	}}
	s, _ := newTestSerial(port)

	conn, err := s.Connect(context.Background(), "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	r, err := conn.ReadCurrent(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.CO2 != 450 || r.Temperature != 21.5 || r.Pressure != 1013 || r.Humidity != 45 || r.Battery != 90 {
		t.Fatalf("unexpected reading %+v", r)
	}
	if r.Interval != time.Minute || r.Age != 7*time.Second {
		t.Fatalf("unexpected timing %v / %v", r.Interval, r.Age)
	}
	if r.CapturedAt.IsZero() {
		t.Fatalf("expected capture time to be set")
	}
}

func TestSerialReadHistory(t *testing.T) {
	port := &fakePort{replies: map[string]string{
		"HISTORY": `{"interval":300,"samples":[` +
			`{"time":"2024-03-01T10:00:00Z","co2":600,"temperature":20,"pressure":1000,"humidity":40},` +
			`{"time":"2024-03-01T10:05:00Z","co2":620,"temperature":20.5,"pressure":1001,"humidity":41}]}`,
	}}
	s, _ := newTestSerial(port)

	conn, err := s.Connect(context.Background(), "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	h, err := conn.ReadHistory(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if h.Interval != 5*time.Minute || h.Len() != 2 {
		t.Fatalf("unexpected history %+v", h)
	}
	want := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	if !h.Samples[1].CapturedAt.Equal(want) || h.Samples[1].CO2 != 620 {
		t.Fatalf("unexpected second sample %+v", h.Samples[1])
	}
}

func TestSerialErrorReply(t *testing.T) {
	port := &fakePort{replies: map[string]string{"READ": `{"error":"warming up"}`}}
	s, _ := newTestSerial(port)

	conn, err := s.Connect(context.Background(), "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.ReadCurrent(context.Background()); err == nil || !strings.Contains(err.Error(), "warming up") {
		t.Fatalf("expected sensor error, got %v", err)
	}
	if port.closed {
		t.Fatalf("an error reply should not drop the port")
	}
}

func TestSerialReopensAfterFailure(t *testing.T) {
	dead := &fakePort{replies: map[string]string{}}
	alive := &fakePort{replies: map[string]string{"READ": `{"co2":700}`}}
	s, opened := newTestSerial(dead, alive)

	conn, err := s.Connect(context.Background(), "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.ReadCurrent(context.Background()); err == nil {
		t.Fatalf("expected EOF from silent port")
	}
	if !dead.closed {
		t.Fatalf("failed port should be closed")
	}

	r, err := conn.ReadCurrent(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if r.CO2 != 700 || *opened != 2 {
		t.Fatalf("got co2=%d after %d opens", r.CO2, *opened)
	}
}

func TestSerialDiscover(t *testing.T) {
	port := &fakePort{}
	s, _ := newTestSerial(port)

	var gotPath string
	open := s.open
	s.open = func(path string, baudRate int) (io.ReadWriteCloser, error) {
		gotPath = path
		return open(path, baudRate)
	}

	t.Run("matches product name", func(t *testing.T) {
		s.list = func() ([]*enumerator.PortDetails, error) {
			return []*enumerator.PortDetails{
				{Name: "/dev/ttyUSB0", IsUSB: true, Product: "CP2102 Bridge"},
				{Name: "/dev/ttyACM1", IsUSB: true, Product: "Aranet4 Serial"},
			}, nil
		}
		if _, err := s.Connect(context.Background(), ""); err != nil {
			t.Fatalf("connect: %v", err)
		}
		if gotPath != "/dev/ttyACM1" {
			t.Fatalf("opened %q", gotPath)
		}
	})

	t.Run("no match", func(t *testing.T) {
		s.list = func() ([]*enumerator.PortDetails, error) {
			return []*enumerator.PortDetails{{Name: "/dev/ttyUSB0", IsUSB: true, Product: "GPS"}}, nil
		}
		_, err := s.Connect(context.Background(), "")
		if !errors.Is(err, ErrSensorNotFound) {
			t.Fatalf("expected ErrSensorNotFound, got %v", err)
		}
	})
}
