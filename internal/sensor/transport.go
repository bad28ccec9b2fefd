// Package sensor holds the reading types and the transports that talk to an
// environmental sensor.
package sensor

import "context"

// Transport establishes connections to a sensor.
// An empty address asks the transport to discover the device by name.
type Transport interface {
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is an open link to a sensor. Every call may fail; callers treat all
// failures as recoverable.
type Conn interface {
	ReadCurrent(ctx context.Context) (Reading, error)
	ReadHistory(ctx context.Context) (History, error)
	Close() error
}
