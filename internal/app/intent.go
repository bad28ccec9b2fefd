package app

// IntentKind is the closed set of commands the worker understands.
type IntentKind int

const (
	IntentConnect IntentKind = iota
	IntentRefreshCurrent
	IntentRefreshHistory
)

func (k IntentKind) String() string {
	switch k {
	case IntentConnect:
		return "connect"
	case IntentRefreshCurrent:
		return "refresh-current"
	case IntentRefreshHistory:
		return "refresh-history"
	default:
		return "unknown"
	}
}

// Intent is one unit of work for the worker. It is consumed exactly once.
type Intent struct {
	Kind IntentKind

	// dequeued runs when the worker takes the intent off the queue.
	dequeued func()
	// done runs after the worker has finished handling the intent.
	done func()
}

// NewIntent returns an intent of the given kind.
func NewIntent(kind IntentKind) Intent {
	return Intent{Kind: kind}
}

func (in Intent) String() string {
	return in.Kind.String()
}
