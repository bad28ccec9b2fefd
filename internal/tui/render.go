// Package tui draws the dashboard on a tcell screen and turns terminal events
// into loop actions.
package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

const (
	// CO2 bands as shown on the sensor display.
	co2Good     = 1000
	co2Moderate = 1400

	noticeTTL  = 10 * time.Second
	labelWidth = 14
	helpText   = "q: Quit | r: Refresh | e: Export"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

var (
	baseStyle   = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	titleStyle  = tcell.StyleDefault.Bold(true).Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	headerStyle = tcell.StyleDefault.Bold(true).Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite)
	statusStyle = tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite)
	dimStyle    = baseStyle.Foreground(tcell.ColorGray)
	noticeStyle = tcell.StyleDefault.Background(tcell.ColorDarkGreen).Foreground(tcell.ColorWhite)
)

// Locator describes the current position for the status bar. An empty string
// hides the GPS section.
type Locator interface {
	Describe() string
}

// Renderer draws snapshots. Draw is only called from the loop goroutine;
// Notice may be called from anywhere.
type Renderer struct {
	screen  tcell.Screen
	title   string
	locator Locator
	now     func() time.Time

	mu       sync.Mutex
	notice   string
	noticeAt time.Time
}

// NewRenderer returns a renderer on an initialised screen. locator may be nil.
func NewRenderer(screen tcell.Screen, title string, locator Locator) *Renderer {
	screen.SetStyle(baseStyle)
	return &Renderer{
		screen:  screen,
		title:   title,
		locator: locator,
		now:     time.Now,
	}
}

// Notice shows msg above the status bar for a few frames.
func (r *Renderer) Notice(msg string) {
	r.mu.Lock()
	r.notice = msg
	r.noticeAt = r.now()
	r.mu.Unlock()
}

// Draw renders one frame.
func (r *Renderer) Draw(snap app.Snapshot) {
	s := r.screen
	s.Clear()
	width, height := s.Size()
	if width <= 0 || height <= 0 {
		return
	}

	drawText(s, 0, 0, width, titleStyle, " "+r.title)

	row := 2
	row = r.drawCurrent(s, snap, row, width)
	row++
	r.drawHistory(s, snap, row, width, height-2)

	if msg := r.activeNotice(); msg != "" {
		drawText(s, 0, height-2, width, noticeStyle, " "+msg)
	}
	drawText(s, 0, height-1, width, statusStyle, r.statusLine(snap))

	s.Show()
}

type field struct {
	label string
	value string
	style tcell.Style
}

func (r *Renderer) drawCurrent(s tcell.Screen, snap app.Snapshot, row, width int) int {
	drawText(s, 0, row, width, headerStyle, " CURRENT READINGS")
	row++

	cur := snap.Current
	co2Style := baseStyle.Foreground(co2Color(cur.CO2)).Bold(true)
	if cur.IsZero() {
		co2Style = dimStyle
	}

	lines := []field{
		{"CO2", fmt.Sprintf("%d ppm", cur.CO2), co2Style},
		{"Temperature", fmt.Sprintf("%.1f °C", cur.Temperature), baseStyle},
		{"Humidity", fmt.Sprintf("%.0f %%", cur.Humidity), baseStyle},
		{"Pressure", fmt.Sprintf("%.1f hPa", cur.Pressure), baseStyle},
	}
	if cur.Battery > 0 {
		lines = append(lines, field{"Battery", fmt.Sprintf("%d %%", cur.Battery), baseStyle})
	}

	for _, l := range lines {
		drawText(s, 1, row, labelWidth, dimStyle, l.label)
		drawText(s, 1+labelWidth, row, width-1-labelWidth, l.style, l.value)
		row++
	}
	return row
}

func (r *Renderer) drawHistory(s tcell.Screen, snap app.Snapshot, row, width, maxRow int) {
	if row >= maxRow {
		return
	}
	drawText(s, 0, row, width, headerStyle, " HISTORY")
	row++

	if !snap.HasHistory {
		drawText(s, 1, row, width-1, dimStyle, "history not yet fetched")
		return
	}
	if snap.History.Len() == 0 {
		drawText(s, 1, row, width-1, dimStyle, "no samples recorded yet")
		return
	}

	series := []struct {
		label string
		of    func(sensor.Reading) float64
	}{
		{"CO2", sensor.CO2Of},
		{"Temperature", sensor.TemperatureOf},
		{"Humidity", sensor.HumidityOf},
		{"Pressure", sensor.PressureOf},
	}
	for _, sr := range series {
		if row >= maxRow {
			return
		}
		drawText(s, 1, row, labelWidth, dimStyle, sr.label)
		drawText(s, 1+labelWidth, row, width-1-labelWidth, baseStyle, sparkline(snap.History.Series(sr.of), width-1-labelWidth))
		row++
	}
}

func (r *Renderer) statusLine(snap app.Snapshot) string {
	text := " " + snap.Status.String()
	if !snap.CurrentAt.IsZero() {
		age := snap.TakenAt.Sub(snap.CurrentAt).Round(time.Second)
		text += fmt.Sprintf(" | Updated %v ago", age)
	}
	if r.locator != nil {
		if loc := r.locator.Describe(); loc != "" {
			text += " | " + loc
		}
	}
	return text + " | " + helpText
}

func (r *Renderer) activeNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notice == "" || r.now().Sub(r.noticeAt) > noticeTTL {
		return ""
	}
	return r.notice
}

func co2Color(ppm int) tcell.Color {
	switch {
	case ppm < co2Good:
		return tcell.ColorGreen
	case ppm < co2Moderate:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

// sparkline scales the last width values of series between their min and max.
func sparkline(series []float64, width int) string {
	if width <= 0 || len(series) == 0 {
		return ""
	}
	if len(series) > width {
		series = series[len(series)-width:]
	}

	lo, hi := series[0], series[0]
	for _, v := range series {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]rune, len(series))
	top := len(sparkRunes) - 1
	for i, v := range series {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(top))
		}
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

// drawText draws text at a position and pads the rest of width with blanks.
func drawText(s tcell.Screen, x, y, width int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= width {
			break
		}
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
	for col < width {
		s.SetContent(x+col, y, ' ', nil, style)
		col++
	}
}
