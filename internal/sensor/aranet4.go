package sensor

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Aranet4 GATT identifiers.
const (
	aranet4NamePrefix = "Aranet4"

	// Firmware before 1.2.0 advertises the vendor service, later firmware the
	// SIG assigned 0xFCE0. Both expose the same characteristics.
	aranet4ServiceUUID       = "f0cd1400-95da-4f4b-9ac8-aa55d312af0c"
	aranet4ServiceUUIDShort  = 0xFCE0
	aranet4CurrentReadingsID = "f0cd3003-95da-4f4b-9ac8-aa55d312af0c"
)

const (
	aranet4ShortPayload    = 9
	aranet4DetailedPayload = 13
	aranet4InvalidFlag     = 0x8000
)

// DecodeAranet4 decodes the current-readings characteristic payload.
// Layout, little endian: CO2 u16 ppm, temperature u16 (1/20 °C),
// pressure u16 (1/10 hPa), humidity u8, battery u8, status u8, and in the
// detailed variant interval u16 s and age u16 s.
func DecodeAranet4(buf []byte, capturedAt time.Time) (Reading, error) {
	if len(buf) < aranet4ShortPayload {
		return Reading{}, errors.Errorf("aranet4 payload too short: %d bytes", len(buf))
	}

	co2 := binary.LittleEndian.Uint16(buf[0:2])
	if co2&aranet4InvalidFlag != 0 {
		return Reading{}, errors.New("aranet4 measurement not ready")
	}

	r := Reading{
		CO2:         int(co2),
		Temperature: float64(binary.LittleEndian.Uint16(buf[2:4])) / 20,
		Pressure:    float64(binary.LittleEndian.Uint16(buf[4:6])) / 10,
		Humidity:    float64(buf[6]),
		Battery:     int(buf[7]),
		CapturedAt:  capturedAt,
	}

	if len(buf) >= aranet4DetailedPayload {
		r.Interval = time.Duration(binary.LittleEndian.Uint16(buf[9:11])) * time.Second
		r.Age = time.Duration(binary.LittleEndian.Uint16(buf[11:13])) * time.Second
	}

	return r, nil
}
