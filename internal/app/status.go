package app

// Status is the connection status of the sensor link.
type Status int

const (
	// StatusIdle means no connection has been attempted yet.
	StatusIdle Status = iota
	// StatusConnecting means a connect is in flight.
	StatusConnecting
	// StatusConnected means the sensor answered a connect.
	StatusConnected
	// StatusConnectionFailed means the last connect failed.
	StatusConnectionFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Waiting to connect..."
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected to Sensor"
	case StatusConnectionFailed:
		return "Connection Failed"
	default:
		return "Unknown"
	}
}

// Connected reports whether s suppresses reconnect attempts.
func (s Status) Connected() bool {
	return s == StatusConnected
}

// CanTransition reports whether s -> to is one of the allowed edges:
// Idle -> Connecting, Connecting -> Connected | ConnectionFailed,
// ConnectionFailed -> Connecting.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusIdle, StatusConnectionFailed:
		return to == StatusConnecting
	case StatusConnecting:
		return to == StatusConnected || to == StatusConnectionFailed
	default:
		return false
	}
}
