package types

import "testing"

func TestSocketState(t *testing.T) {
	tests := []struct {
		s    SocketState
		want string
	}{
		{SocketIdle, "idle"},
		{SocketConnecting, "connecting"},
		{SocketConnected, "connected"},
		{SocketListening, "listening"},
		{SocketBroken, "broken"},
		{SocketState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.s.String(); got != tt.want {
				t.Errorf("SocketState(%d).String() = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestSessionState(t *testing.T) {
	tests := []struct {
		s    SessionState
		want string
	}{
		{SessionDisconnected, "disconnected"},
		{SessionGathering, "gathering"},
		{SessionConnecting, "connecting"},
		{SessionConnected, "connected"},
		{SessionCompleted, "completed"},
		{SessionFailed, "failed"},
		{SessionClosed, "closed"},
		{SessionState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.s.String(); got != tt.want {
				t.Errorf("SessionState(%d).String() = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestFieldKind(t *testing.T) {
	for _, s := range []string{"quoted", "direct"} {
		k, ok := ParseFieldKind(s)
		if !ok || k.String() != s {
			t.Errorf("ParseFieldKind(%q) = %v, %v", s, k, ok)
		}
	}
	if _, ok := ParseFieldKind("blob"); ok {
		t.Error("ParseFieldKind(blob) should fail")
	}
}
