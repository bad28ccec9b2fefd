package app

import "testing"

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusIdle, StatusConnecting, StatusConnected, StatusConnectionFailed}
	allowed := map[[2]Status]bool{
		{StatusIdle, StatusConnecting}:             true,
		{StatusConnecting, StatusConnected}:        true,
		{StatusConnecting, StatusConnectionFailed}: true,
		{StatusConnectionFailed, StatusConnecting}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%v -> %v: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusIdle, "Waiting to connect..."},
		{StatusConnecting, "Connecting..."},
		{StatusConnected, "Connected to Sensor"},
		{StatusConnectionFailed, "Connection Failed"},
		{Status(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
	if !StatusConnected.Connected() || StatusConnectionFailed.Connected() {
		t.Fatalf("only StatusConnected counts as connected")
	}
}

func TestSetStatusRejectsUndocumentedEdge(t *testing.T) {
	a := New(NewQueue(1))
	if from, ok := a.setStatus(StatusConnected); ok || from != StatusIdle {
		t.Fatalf("Idle -> Connected should be refused, got from=%v ok=%v", from, ok)
	}
	if a.Status() != StatusIdle {
		t.Fatalf("status changed on refused edge: %v", a.Status())
	}
}
