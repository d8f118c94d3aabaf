package adapter

import "testing"

func TestSessionAuthenticated(t *testing.T) {
	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{"nil", nil, false},
		{"no token", NewSession(ServerConfig{UserID: "u1"}), false},
		{"token", NewSession(ServerConfig{Token: "abc", UserID: "u1"}), true},
		{"local", LocalSession(""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Authenticated(); got != tt.want {
				t.Errorf("Authenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocalSessionDefaults(t *testing.T) {
	s := LocalSession("")
	if s.Username() != "local" || s.UserID() != "local" || s.Token() != "" {
		t.Errorf("unexpected local session %+v", *s)
	}
}
