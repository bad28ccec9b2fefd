package export

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/twpayne/go-kml/v3"

	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/location"
	"github.com/storskegg/aranet-dash/internal/sensor"
)

const timeLayout = "2006-01-02 15:04:05"

// CO2 bands matching the dashboard colours.
var co2Styles = []struct {
	id    string
	below int
	color color.Color
}{
	{"co2-good", 1000, color.RGBA{R: 0, G: 200, B: 0, A: 255}},
	{"co2-moderate", 1400, color.RGBA{R: 255, G: 200, B: 0, A: 255}},
	{"co2-poor", 1 << 30, color.RGBA{R: 220, G: 0, B: 0, A: 255}},
}

func styleURLForCO2(ppm int) string {
	for _, s := range co2Styles {
		if ppm < s.below {
			return "#" + s.id
		}
	}
	return "#" + co2Styles[len(co2Styles)-1].id
}

func describeReading(r sensor.Reading, status string) string {
	var html strings.Builder
	html.WriteString("<ul>")
	if status != "" {
		fmt.Fprintf(&html, "<li><strong>Status:</strong> %s</li>", status)
	}
	if !r.CapturedAt.IsZero() {
		fmt.Fprintf(&html, "<li><strong>Captured:</strong> %s</li>", r.CapturedAt.Format(timeLayout))
	}
	fmt.Fprintf(&html, "<li><strong>CO2:</strong> %d ppm</li>", r.CO2)
	fmt.Fprintf(&html, "<li><strong>Temperature:</strong> %.1f °C</li>", r.Temperature)
	fmt.Fprintf(&html, "<li><strong>Humidity:</strong> %.0f %%</li>", r.Humidity)
	fmt.Fprintf(&html, "<li><strong>Pressure:</strong> %.1f hPa</li>", r.Pressure)
	html.WriteString("</ul>")
	return html.String()
}

// writeKML places the current reading at fix, plus one timestamped placemark
// per history sample so the series can be replayed on a time slider.
func writeKML(w io.Writer, name string, snap app.Snapshot, fix location.Fix) error {
	if name == "" {
		name = "Aranet4"
	}
	point := kml.Point(kml.Coordinates(kml.Coordinate{
		Lon: fix.Longitude,
		Lat: fix.Latitude,
		Alt: fix.Elevation,
	}))

	docElements := []kml.Element{
		kml.Name(fmt.Sprintf("%s - %s", name, snap.TakenAt.Format(timeLayout))),
	}
	for _, s := range co2Styles {
		docElements = append(docElements, kml.SharedStyle(s.id, kml.IconStyle(kml.Color(s.color))))
	}

	docElements = append(docElements, kml.Placemark(
		kml.Name(fmt.Sprintf("%s: %d ppm", name, snap.Current.CO2)),
		kml.Description(describeReading(snap.Current, snap.Status.String())),
		kml.StyleURL(styleURLForCO2(snap.Current.CO2)),
		point,
	))

	if snap.HasHistory && snap.History.Len() > 0 {
		folder := []kml.Element{kml.Name("History")}
		for _, r := range snap.History.Samples {
			elems := []kml.Element{
				kml.Name(fmt.Sprintf("%d ppm", r.CO2)),
				kml.Description(describeReading(r, "")),
				kml.StyleURL(styleURLForCO2(r.CO2)),
			}
			if !r.CapturedAt.IsZero() {
				elems = append(elems, kml.TimeStamp(kml.When(r.CapturedAt)))
			}
			elems = append(elems, kml.Point(kml.Coordinates(kml.Coordinate{
				Lon: fix.Longitude,
				Lat: fix.Latitude,
				Alt: fix.Elevation,
			})))
			folder = append(folder, kml.Placemark(elems...))
		}
		docElements = append(docElements, kml.Folder(folder...))
	}

	doc := kml.KML(kml.Document(docElements...))
	return doc.WriteIndent(w, "", "  ")
}
