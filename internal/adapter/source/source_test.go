package source

import (
	"testing"

	"github.com/mmcdole/reel/internal/adapter"
)

func TestNewSourcesOffline(t *testing.T) {
	cfg := adapter.DefaultConfig()
	cfg.Catalog.Mode = adapter.CatalogModeOffline

	src, err := NewSources(cfg, adapter.NullLogger())
	if err != nil {
		t.Fatalf("NewSources: %v", err)
	}
	if src.Remote != nil {
		t.Error("offline mode should not build a remote client")
	}
	if src.Dataset == nil || src.Dataset.Len() == 0 {
		t.Error("bundled dataset should always be loaded")
	}
}

func TestNewSourcesNetwork(t *testing.T) {
	cfg := adapter.DefaultConfig()

	if _, err := NewSources(cfg, adapter.NullLogger()); err == nil {
		t.Error("network mode without a server URL should fail")
	}

	cfg.Server.URL = "http://localhost:5000"
	src, err := NewSources(cfg, adapter.NullLogger())
	if err != nil {
		t.Fatalf("NewSources: %v", err)
	}
	if src.Remote == nil || src.Mode != adapter.CatalogModeNetwork {
		t.Errorf("unexpected sources %+v", src)
	}
}
