package adapter

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.UI.OverlayTimeout != 3*time.Second {
		t.Errorf("expected 3s overlay timeout, got %v", cfg.UI.OverlayTimeout)
	}
	if cfg.Catalog.Mode != CatalogModeNetwork {
		t.Errorf("expected network mode by default, got %q", cfg.Catalog.Mode)
	}
}

func TestDecodeYAML(t *testing.T) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
server:
  url: http://localhost:5000
  token: abc
catalog:
  mode: offline
  timeout: 2s
player:
  backend: sim
  initial_volume: 1.7
ui:
  overlay_timeout: 1500ms
`))
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	cfg, err := decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Server.URL != "http://localhost:5000" || cfg.Server.Token != "abc" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Catalog.Mode != CatalogModeOffline || cfg.Catalog.Timeout != 2*time.Second {
		t.Errorf("unexpected catalog config %+v", cfg.Catalog)
	}
	if cfg.Catalog.PageSize != 20 {
		t.Errorf("page size should keep its default, got %d", cfg.Catalog.PageSize)
	}
	if cfg.Player.Backend != PlayerBackendSim || cfg.Player.InitialVolume != 1 {
		t.Errorf("unexpected player config %+v", cfg.Player)
	}
	if cfg.UI.OverlayTimeout != 1500*time.Millisecond {
		t.Errorf("unexpected overlay timeout %v", cfg.UI.OverlayTimeout)
	}
}

func TestValidateRejectsUnknownModes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"catalog mode", func(c *Config) { c.Catalog.Mode = "carrier-pigeon" }},
		{"player backend", func(c *Config) { c.Player.Backend = "vlc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSession(t *testing.T) {
	var nilSession *Session
	if nilSession.Authenticated() || nilSession.UserID() != "" {
		t.Error("nil session should be signed out")
	}

	s := NewSession(ServerConfig{Token: "t", UserID: "u1", Username: "asha"})
	if !s.Authenticated() || s.UserID() != "u1" || s.Username() != "asha" {
		t.Errorf("unexpected session %+v", s)
	}
	if NewSession(ServerConfig{UserID: "u1"}).Authenticated() {
		t.Error("session without token should not be authenticated")
	}
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("/tmp/reel.sock", []string{"--hwdec=auto"})
	if args[0] != "--idle=yes" || args[1] != "--input-ipc-server=/tmp/reel.sock" {
		t.Errorf("unexpected leading args %v", args)
	}
	if args[len(args)-1] != "--hwdec=auto" {
		t.Errorf("extra args should come last, got %v", args)
	}
}
