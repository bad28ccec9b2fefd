package sensor

import (
	"testing"
	"time"
)

func TestDecodeAranet4(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("detailed payload", func(t *testing.T) {
		// 450 ppm, 21.5 °C (430/20), 1013.0 hPa (10130/10), 45 %, 87 %, status 1,
		// interval 60 s, age 12 s
		buf := []byte{
			0xC2, 0x01,
			0xAE, 0x01,
			0x92, 0x27,
			45,
			87,
			1,
			0x3C, 0x00,
			0x0C, 0x00,
		}
		got, err := DecodeAranet4(buf, at)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Reading{
			CO2:         450,
			Temperature: 21.5,
			Pressure:    1013,
			Humidity:    45,
			Battery:     87,
			Interval:    time.Minute,
			Age:         12 * time.Second,
			CapturedAt:  at,
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})

	t.Run("short payload leaves interval unset", func(t *testing.T) {
		buf := []byte{0xC2, 0x01, 0xAE, 0x01, 0x92, 0x27, 45, 87, 1}
		got, err := DecodeAranet4(buf, at)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.CO2 != 450 || got.Interval != 0 || got.Age != 0 {
			t.Fatalf("unexpected reading %+v", got)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := DecodeAranet4([]byte{1, 2, 3}, at); err == nil {
			t.Fatalf("expected error for short payload")
		}
	})

	t.Run("invalid measurement flag", func(t *testing.T) {
		buf := []byte{0x00, 0x80, 0xAE, 0x01, 0x92, 0x27, 45, 87, 1}
		if _, err := DecodeAranet4(buf, at); err == nil {
			t.Fatalf("expected error when CO2 is flagged invalid")
		}
	})
}
