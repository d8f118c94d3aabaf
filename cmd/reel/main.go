package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/adapter/source"
	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/notify"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/player/mpv"
	"github.com/mmcdole/reel/internal/player/sim"
	"github.com/mmcdole/reel/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		offline     bool
		simulate    bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&offline, "offline", false, "browse the bundled catalog without a server")
	flag.BoolVar(&simulate, "sim", false, "use the simulated player instead of mpv")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("reel %s\n", Version)
		return
	}

	var err error
	switch flag.Arg(0) {
	case "":
		err = run(offline, simulate)
	case "login":
		err = runLogin(flag.Arg(1))
	case "logout":
		err = runLogout()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: reel [flags] [login [server-url] | logout]\n\n")
	flag.PrintDefaults()
}

// setup loads configuration and the file logger
func setup() (*adapter.Config, *slog.Logger, func(), error) {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
		closer = nil
	}
	slog.SetDefault(logger)

	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return cfg, logger, cleanup, nil
}

func run(offline, simulate bool) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if offline {
		cfg.Catalog.Mode = adapter.CatalogModeOffline
	}
	if simulate {
		cfg.Player.Backend = adapter.PlayerBackendSim
	}
	if cfg.Catalog.Mode == adapter.CatalogModeNetwork && !cfg.IsConfigured() {
		fmt.Println("No catalog server configured.")
		fmt.Println("Run 'reel login <server-url>' or start with -offline.")
		return nil
	}

	logger.Info("starting reel", "version", Version, "mode", cfg.Catalog.Mode, "player", cfg.Player.Backend)

	sources, err := source.NewSources(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create catalog sources: %w", err)
	}

	var viewer *adapter.Session
	if sources.Mode == adapter.CatalogModeOffline {
		viewer = adapter.LocalSession(cfg.Server.Username)
	} else {
		viewer = adapter.NewSession(cfg.Server)
	}

	toasts := notify.NewQueue(nil, logger)

	// nil interface, not a typed nil, selects offline mode
	var remote catalog.Remote
	if sources.Remote != nil {
		remote = sources.Remote
	}
	store := catalog.New(remote, sources.Dataset, viewer, toasts, logger)
	defer store.Close()

	backend := newBackend(cfg, sources.Dataset, logger)
	ctrl := player.NewController(backend, player.Config{
		InitialVolume:  cfg.Player.InitialVolume,
		InitialRate:    cfg.Player.InitialRate,
		AutoPlay:       cfg.Player.AutoPlay,
		OverlayTimeout: cfg.UI.OverlayTimeout,
	}, toasts, logger)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Warn("failed to close player", "error", err)
		}
	}()

	model := tui.NewModel(store, ctrl, toasts, viewer, cfg.Catalog.PageSize, logger)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// newBackend picks the media engine for the configured backend
func newBackend(cfg *adapter.Config, data *fallback.Dataset, logger *slog.Logger) player.Backend {
	if cfg.Player.Backend == adapter.PlayerBackendSim {
		durations := make(map[string]float64, data.Len())
		for _, v := range data.All() {
			durations[v.MediaURL] = float64(v.Duration)
		}
		return sim.New(sim.WithDurationLookup(func(url string) float64 {
			return durations[url]
		}))
	}
	launcher := adapter.NewLauncher(cfg.Player.Command, cfg.Player.Args, logger)
	return mpv.New(mpv.LauncherConnector{Launcher: launcher}, logger)
}

// runLogin signs in and stores the token in the config file
func runLogin(serverURL string) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if serverURL == "" {
		serverURL = cfg.Server.URL
	}
	if serverURL == "" {
		serverURL, err = prompt("Catalog server URL (e.g., http://localhost:8080): ")
		if err != nil {
			return err
		}
	}
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return errors.New("server URL cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := source.NewAuthFlow(logger).Run(ctx, serverURL)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			return errors.New("authentication failed: wrong username or password")
		}
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := adapter.SaveToken(serverURL, result.Token, result.UserID, result.Username); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run reel again to start the application.")
	return nil
}

// runLogout clears the stored server and credentials
func runLogout() error {
	_, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := adapter.ClearServerConfig(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	fmt.Println("Signed out.")
	return nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}
