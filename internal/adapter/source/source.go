package source

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/adapter/source/catalog"
	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/domain"
)

// Remote combines the interfaces a catalog backend must implement
type Remote interface {
	domain.CatalogClient
	domain.EngagementClient
}

// Sources bundles everything the catalog store needs to serve data
type Sources struct {
	Remote  Remote // nil in offline mode
	Dataset *fallback.Dataset
	Mode    adapter.CatalogMode
}

// NewSources builds the catalog sources for the configured mode.
// Network mode requires a server URL; the bundled dataset is always loaded
// so failures can fall back to it.
func NewSources(cfg *adapter.Config, logger *slog.Logger) (*Sources, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	dataset, err := fallback.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled dataset: %w", err)
	}

	switch cfg.Catalog.Mode {
	case adapter.CatalogModeOffline:
		return &Sources{Dataset: dataset, Mode: adapter.CatalogModeOffline}, nil

	case adapter.CatalogModeNetwork:
		if cfg.Server.URL == "" {
			return nil, fmt.Errorf("server URL is required in network mode")
		}
		var opts []catalog.Option
		if cfg.Catalog.Timeout > 0 {
			opts = append(opts, catalog.WithHTTPClient(&http.Client{Timeout: cfg.Catalog.Timeout}))
		}
		client := catalog.NewClient(cfg.Server.URL, cfg.Server.Token, logger, opts...)
		return &Sources{Remote: client, Dataset: dataset, Mode: adapter.CatalogModeNetwork}, nil

	default:
		return nil, fmt.Errorf("unknown catalog mode: %s", cfg.Catalog.Mode)
	}
}

// NewAuthFlow creates the sign-in flow for the catalog server
func NewAuthFlow(logger *slog.Logger) domain.AuthFlow {
	return catalog.NewAuthFlow(logger)
}
