package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPlayerNotFound is returned when no mpv executable can be located
var ErrPlayerNotFound = errors.New("mpv executable not found")

const socketWait = 5 * time.Second

// candidatePaths lists where mpv is commonly installed, tried in order
// after the configured command
var candidatePaths = map[string][]string{
	"darwin": {
		"mpv",
		"/opt/homebrew/bin/mpv",
		"/usr/local/bin/mpv",
		"/Applications/mpv.app/Contents/MacOS/mpv",
	},
	"linux":   {"mpv", "/usr/bin/mpv", "/usr/local/bin/mpv"},
	"windows": {"mpv.exe", "mpv"},
}

// Launcher starts an idle mpv process that is controlled over JSON IPC
type Launcher struct {
	command string   // configured player command, empty for auto-detect
	args    []string // additional arguments for the player
	logger  *slog.Logger
}

// NewLauncher creates a new Launcher
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// Process is a running mpv instance
type Process struct {
	SocketPath string

	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed when the process exits
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop kills the process and removes its socket
func (p *Process) Stop() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.done
	if runtime.GOOS != "windows" {
		_ = os.Remove(p.SocketPath)
	}
	return nil
}

// resolveCommand finds the mpv executable to run
func (l *Launcher) resolveCommand() (string, error) {
	candidates := candidatePaths[runtime.GOOS]
	if candidates == nil {
		candidates = candidatePaths["linux"]
	}
	if l.command != "" {
		candidates = append([]string{l.command}, candidates...)
	}

	for _, c := range candidates {
		path, err := exec.LookPath(c)
		if err == nil {
			return path, nil
		}
		l.logger.Debug("player path not available", "path", c, "error", err)
	}
	return "", ErrPlayerNotFound
}

// newSocketPath returns a unique IPC endpoint for this platform
func newSocketPath() string {
	name := "reel-mpv-" + uuid.NewString()
	if runtime.GOOS == "windows" {
		return `\\.\pipe\` + name
	}
	return filepath.Join(os.TempDir(), name+".sock")
}

// buildArgs returns the mpv arguments for an idle, IPC-controlled instance
func buildArgs(socketPath string, extra []string) []string {
	args := []string{
		"--idle=yes",
		"--input-ipc-server=" + socketPath,
		"--force-window=yes",
		"--keep-open=yes",
		"--pause",
		"--no-terminal",
	}
	return append(args, extra...)
}

// Start launches mpv and waits for its IPC socket to appear
func (l *Launcher) Start(ctx context.Context) (*Process, error) {
	command, err := l.resolveCommand()
	if err != nil {
		return nil, err
	}

	socketPath := newSocketPath()
	args := buildArgs(socketPath, l.args)
	l.logger.Info("launching player", "command", command, "args", args)

	cmd := exec.Command(command, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	proc := &Process{SocketPath: socketPath, cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		proc.mu.Lock()
		proc.err = err
		proc.mu.Unlock()
		close(proc.done)
		l.logger.Debug("player process exited", "error", err)
	}()

	if runtime.GOOS == "windows" {
		// named pipes cannot be stat'ed; the IPC client retries its dial
		return proc, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, socketWait)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(socketPath); err == nil {
			return proc, nil
		}
		select {
		case <-ticker.C:
		case <-proc.done:
			return nil, fmt.Errorf("player exited before opening IPC socket: %v", proc.Err())
		case <-waitCtx.Done():
			_ = proc.Stop()
			return nil, fmt.Errorf("timed out waiting for player IPC socket: %w", waitCtx.Err())
		}
	}
}
