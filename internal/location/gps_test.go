package location

import (
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/logger"
)

const (
	ggaFix   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix = "$GPGGA,123519,4807.038,N,01131.000,E,0,00,0.0,545.4,M,46.9,M,,*47"
	rmcValid = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	rmcVoid  = "$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*7D"
	gsvFirst = "$GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45*75"
	gsvNext  = "$GPGSV,2,2,08,15,40,083,46,16,17,308,41,17,07,344,39,18,22,228,45*7F"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func newTestParser() (*parser, *State) {
	st := NewState()
	return &parser{state: st, now: func() time.Time { return fixedNow }}, st
}

func TestParserGGA(t *testing.T) {
	p, st := newTestParser()
	p.parse(gsvFirst)
	p.parse(gsvNext)
	p.parse(ggaFix)

	fix, ok := st.Current()
	if !ok {
		t.Fatalf("expected a fix")
	}
	if !near(fix.Latitude, 48.1173) || !near(fix.Longitude, 11.51667) {
		t.Fatalf("position = %v, %v", fix.Latitude, fix.Longitude)
	}
	if fix.Elevation != 545.4 || fix.HDOP != 0.9 || !fix.At.Equal(fixedNow) {
		t.Fatalf("unexpected fix %+v", fix)
	}
	if st.Status() != StatusFix {
		t.Fatalf("status = %v", st.Status())
	}
	if got := st.Describe(); got != "GPS: Fix (48.1173, 11.5167) Q:1 8 / 8" {
		t.Fatalf("Describe = %q", got)
	}
}

func TestParserNoFix(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"gga quality 0", ggaNoFix},
		{"rmc void", rmcVoid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, st := newTestParser()
			p.parse(tt.line)
			if _, ok := st.Current(); ok {
				t.Fatalf("no-fix sentence produced a fix")
			}
			if st.Status() != StatusNoFix {
				t.Fatalf("status = %v, want no_fix", st.Status())
			}
		})
	}
}

func TestParserRMCFallback(t *testing.T) {
	p, st := newTestParser()
	p.parse(rmcValid)

	fix, ok := st.Current()
	if !ok || !near(fix.Latitude, 48.1173) || fix.Elevation != 0 {
		t.Fatalf("unexpected fix %+v ok=%v", fix, ok)
	}
}

func TestParserIgnoresGarbage(t *testing.T) {
	p, st := newTestParser()
	for _, line := range []string{"", "hello", "$GPGGA,broken*00"} {
		p.parse(line)
	}
	if st.Status() != StatusNone {
		t.Fatalf("garbage changed status to %v", st.Status())
	}
}

func TestDetectValidNMEA(t *testing.T) {
	deadline := fixedNow.Add(time.Second)
	clock := func() time.Time { return fixedNow }

	if !detectValidNMEA(strings.NewReader(ggaFix+"\n"+rmcValid+"\n"), deadline, clock) {
		t.Fatalf("two valid sentences should be detected")
	}
	if detectValidNMEA(strings.NewReader("\x00\x13garbage\n"+ggaFix+"\n"), deadline, clock) {
		t.Fatalf("one valid sentence should not be enough")
	}
	if detectValidNMEA(strings.NewReader(ggaFix+"\n"+ggaFix+"\n"), fixedNow, clock) {
		t.Fatalf("nothing should be accepted after the deadline")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		state *State
		want  string
	}{
		{"none", NewState(), ""},
		{"static", NewStatic(52.52, 13.405), "Location: (52.5200, 13.4050)"},
		{"detecting", &State{status: StatusDetecting}, "GPS: Detecting..."},
		{"failed", &State{status: StatusFailed}, "GPS: FAILED"},
		{"no fix", &State{status: StatusNoFix, inView: 7, satellites: 3}, "GPS: No Fix (7 / 3)"},
		{"reconnecting", &State{status: StatusNoFix, attempts: 2}, "GPS: Reconnecting (attempt 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Describe(); got != tt.want {
				t.Fatalf("Describe = %q, want %q", got, tt.want)
			}
		})
	}
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestGPSRun(t *testing.T) {
	st := NewState()
	g := NewGPS("/dev/ttyGPS", st, logger.Nop())

	var mu sync.Mutex
	var bauds []int
	g.open = func(path string, baud int) (io.ReadCloser, error) {
		mu.Lock()
		bauds = append(bauds, baud)
		mu.Unlock()
		if baud != 38400 {
			return nil, errors.New("no such baud")
		}
		return nopCloser{strings.NewReader(gsvFirst + "\n" + ggaFix + "\n")}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := st.Current(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no fix, status %v", st.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("GPS reader did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bauds) < 4 || bauds[0] != 9600 || bauds[2] != 38400 || bauds[3] != 38400 {
		t.Fatalf("open sequence = %v", bauds)
	}
}

func TestGPSRunDetectionFails(t *testing.T) {
	st := NewState()
	g := NewGPS("/dev/ttyGPS", st, logger.Nop())
	g.open = func(string, int) (io.ReadCloser, error) {
		return nopCloser{strings.NewReader("noise\n")}, nil
	}

	g.Run(context.Background())
	if st.Status() != StatusFailed {
		t.Fatalf("status = %v, want failed", st.Status())
	}
}
