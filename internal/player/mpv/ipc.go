package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mmcdole/reel/internal/adapter"
)

const commandTimeout = 5 * time.Second

var errConnClosed = errors.New("mpv connection closed")

// Connector starts or reaches an mpv instance and returns its IPC
// connection. The closer shuts the instance down.
type Connector interface {
	Connect(ctx context.Context) (net.Conn, io.Closer, error)
}

// LauncherConnector launches a dedicated mpv process per backend
type LauncherConnector struct {
	Launcher *adapter.Launcher
}

// Connect starts mpv and dials its IPC socket
func (l LauncherConnector) Connect(ctx context.Context) (net.Conn, io.Closer, error) {
	proc, err := l.Launcher.Start(ctx)
	if err != nil {
		return nil, nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", proc.SocketPath)
	if err != nil {
		_ = proc.Stop()
		return nil, nil, fmt.Errorf("failed to connect to mpv IPC: %w", err)
	}
	return conn, processCloser{proc}, nil
}

type processCloser struct{ proc *adapter.Process }

func (p processCloser) Close() error { return p.proc.Stop() }

// request is a JSON IPC command
type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// message is anything mpv writes: a reply or an event
type message struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	Name      string          `json:"name,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
}

type reply struct {
	data json.RawMessage
	err  error
}

// conn multiplexes commands and events over one IPC connection
type conn struct {
	nc     net.Conn
	logger *slog.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan reply
	closed  bool

	onEvent func(message)
	done    chan struct{}
}

func newConn(nc net.Conn, onEvent func(message), logger *slog.Logger) *conn {
	c := &conn{
		nc:      nc,
		logger:  logger,
		pending: make(map[int64]chan reply),
		onEvent: onEvent,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// command sends args and waits for mpv's reply
func (c *conn) command(args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errConnClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("failed to encode mpv command: %w", err)
	}

	c.wmu.Lock()
	_, err = c.nc.Write(append(line, '\n'))
	c.wmu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("failed to send mpv command: %w", err)
	}

	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.data, r.err
	case <-c.done:
		return nil, errConnClosed
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("mpv command %v timed out", args[0])
	}
}

func (c *conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *conn) readLoop() {
	defer c.shutdown()

	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.logger.Debug("ignoring malformed mpv message", "error", err)
			continue
		}

		if msg.Event != "" {
			c.onEvent(msg)
			continue
		}
		if msg.RequestID == nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*msg.RequestID]
		delete(c.pending, *msg.RequestID)
		c.mu.Unlock()
		if !ok {
			continue
		}

		r := reply{data: msg.Data}
		if msg.Error != "" && msg.Error != "success" {
			r.err = fmt.Errorf("mpv: %s", msg.Error)
		}
		ch <- r
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debug("mpv connection read failed", "error", err)
	}
}

func (c *conn) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
}

// Done is closed when the connection ends
func (c *conn) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection; the reader exits on its own
func (c *conn) Close() error {
	return c.nc.Close()
}
