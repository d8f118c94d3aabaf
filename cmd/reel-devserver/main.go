package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/devserver"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "listen address")
		secret   = flag.String("secret", os.Getenv("REEL_DEV_SECRET"), "token signing secret (default $REEL_DEV_SECRET)")
		users    = flag.String("users", "demo:demo", "comma-separated username:password accounts")
		rate     = flag.Float64("rate", 10, "requests per second per client, 0 disables limiting")
		burst    = flag.Int("burst", 20, "request burst per client")
		logLevel = flag.String("log-level", "INFO", "log level")
	)
	flag.Parse()

	logger := adapter.NewLogger(os.Stderr, *logLevel)
	if err := run(*addr, *secret, *users, *rate, *burst, logger); err != nil {
		logger.Error("devserver failed", "error", err)
		os.Exit(1)
	}
}

func run(addr, secret, users string, rate float64, burst int, logger *slog.Logger) error {
	if secret == "" {
		return errors.New("a token secret is required: pass -secret or set REEL_DEV_SECRET")
	}
	accounts, err := parseUsers(users)
	if err != nil {
		return err
	}

	data, err := fallback.Load()
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	srv, err := devserver.New(devserver.Config{
		Secret:        secret,
		Users:         accounts,
		RatePerSecond: rate,
		Burst:         burst,
		Logger:        logger,
	}, data)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "videos", data.Len(), "users", len(accounts))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// parseUsers reads "name:password,name:password"
func parseUsers(s string) (map[string]string, error) {
	accounts := make(map[string]string)
	for entry := range strings.SplitSeq(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid account %q: expected name:password", entry)
		}
		accounts[name] = password
	}
	if len(accounts) == 0 {
		return nil, errors.New("at least one account is required")
	}
	return accounts, nil
}
