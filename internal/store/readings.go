package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/sensor"
)

// Store appends and queries readings.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a store on an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Append inserts r. A zero CapturedAt is stamped with the current time.
func (s *Store) Append(ctx context.Context, r sensor.Reading) error {
	at := r.CapturedAt
	if at.IsZero() {
		at = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (id, captured_at, co2, temperature, pressure, humidity, battery, interval_s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		at.UTC().UnixMilli(),
		r.CO2,
		r.Temperature,
		r.Pressure,
		r.Humidity,
		r.Battery,
		int64(r.Interval/time.Second),
	)
	return errors.Wrap(err, "insert reading")
}

// Recent returns at most limit readings captured at or after since, oldest
// first. limit <= 0 means no limit.
func (s *Store) Recent(ctx context.Context, since time.Time, limit int) ([]sensor.Reading, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT captured_at, co2, temperature, pressure, humidity, battery, interval_s
		FROM readings
		WHERE captured_at >= ?
		ORDER BY captured_at DESC
		LIMIT ?
	`, since.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "query readings")
	}
	defer rows.Close()

	out := make([]sensor.Reading, 0, 64)
	for rows.Next() {
		var (
			r        sensor.Reading
			atMillis int64
			interval int64
		)
		if err := rows.Scan(&atMillis, &r.CO2, &r.Temperature, &r.Pressure, &r.Humidity, &r.Battery, &interval); err != nil {
			return nil, errors.Wrap(err, "scan reading")
		}
		r.CapturedAt = time.UnixMilli(atMillis).UTC()
		r.Interval = time.Duration(interval) * time.Second
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate readings")
	}

	// Newest first from the query; callers want oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
