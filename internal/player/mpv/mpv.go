// Package mpv implements player.Backend by driving an mpv process over
// its JSON IPC protocol.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mmcdole/reel/internal/player"
)

// property observation ids
const (
	obsTimePos = iota + 1
	obsDuration
	obsPausedForCache
	obsEOFReached
)

var errNotOpen = errors.New("mpv is not running")

// Backend controls one mpv instance. The instance is started on the first
// Open and restarted if it exits.
type Backend struct {
	connector Connector
	logger    *slog.Logger
	queue     *eventQueue

	mu      sync.Mutex
	conn    *conn
	closer  io.Closer
	events  func(player.Event)
	loading bool
	closed  bool
}

// New creates a backend that reaches mpv through connector
func New(connector Connector, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		connector: connector,
		logger:    logger,
		queue:     newEventQueue(),
	}
}

// ensureConn returns the live connection, starting mpv if needed
func (b *Backend) ensureConn(ctx context.Context) (*conn, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, player.ErrClosed
	}
	if b.conn != nil {
		select {
		case <-b.conn.Done():
			b.teardownLocked()
		default:
			c := b.conn
			b.mu.Unlock()
			return c, nil
		}
	}

	nc, closer, err := b.connector.Connect(ctx)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	c := newConn(nc, b.handleMessage, b.logger)
	b.conn = c
	b.closer = closer
	b.mu.Unlock()

	// replies arrive on the reader, which also takes b.mu for events
	for _, obs := range []struct {
		id   int
		name string
	}{
		{obsTimePos, "time-pos"},
		{obsDuration, "duration"},
		{obsPausedForCache, "paused-for-cache"},
		{obsEOFReached, "eof-reached"},
	} {
		if _, err := c.command("observe_property", obs.id, obs.name); err != nil {
			b.mu.Lock()
			if b.conn == c {
				b.teardownLocked()
			}
			b.mu.Unlock()
			return nil, fmt.Errorf("failed to observe %s: %w", obs.name, err)
		}
	}

	go b.watch(c)
	return c, nil
}

// watch reports an error if mpv goes away while media is open
func (b *Backend) watch(c *conn) {
	<-c.Done()
	b.mu.Lock()
	current := b.conn == c && !b.closed
	handler := b.events
	b.mu.Unlock()
	if current && handler != nil {
		b.logger.Warn("mpv exited")
		b.queue.push(func() { handler(player.Event{Kind: player.EventError, Err: errors.New("player window closed")}) })
	}
}

func (b *Backend) teardownLocked() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
	if b.closer != nil {
		_ = b.closer.Close()
		b.closer = nil
	}
}

// Open loads url, replacing any current media
func (b *Backend) Open(ctx context.Context, url string, events func(player.Event)) error {
	c, err := b.ensureConn(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.events = events
	b.loading = true
	b.mu.Unlock()

	if _, err := c.command("loadfile", url, "replace"); err != nil {
		return fmt.Errorf("mpv loadfile: %w", err)
	}
	b.logger.Debug("mpv loading", "url", url)
	return nil
}

// handleMessage translates mpv events; runs on the connection's reader
func (b *Backend) handleMessage(msg message) {
	b.mu.Lock()
	handler := b.events
	loading := b.loading
	var ev *player.Event

	switch msg.Event {
	case "file-loaded":
		b.loading = false
		ev = &player.Event{Kind: player.EventReady}
	case "end-file":
		if msg.Reason == "error" {
			ev = &player.Event{Kind: player.EventError, Err: fmt.Errorf("mpv: %s", msg.FileError)}
		}
	case "property-change":
		if !loading {
			ev = propertyEvent(msg)
		}
	}
	b.mu.Unlock()

	if ev == nil || handler == nil {
		return
	}
	e := *ev
	b.queue.push(func() { handler(e) })
}

// propertyEvent maps an observed property change to a player event
func propertyEvent(msg message) *player.Event {
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		return nil
	}
	switch msg.Name {
	case "time-pos":
		var pos float64
		if json.Unmarshal(msg.Data, &pos) != nil {
			return nil
		}
		return &player.Event{Kind: player.EventTime, Position: pos}
	case "duration":
		var d float64
		if json.Unmarshal(msg.Data, &d) != nil {
			return nil
		}
		return &player.Event{Kind: player.EventDuration, Duration: d}
	case "paused-for-cache":
		var stalled bool
		if json.Unmarshal(msg.Data, &stalled) != nil {
			return nil
		}
		if stalled {
			return &player.Event{Kind: player.EventBufferStart}
		}
		return &player.Event{Kind: player.EventBufferEnd}
	case "eof-reached":
		var eof bool
		if json.Unmarshal(msg.Data, &eof) != nil || !eof {
			return nil
		}
		return &player.Event{Kind: player.EventEnded}
	}
	return nil
}

func (b *Backend) live() (*conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil || b.closed {
		return nil, errNotOpen
	}
	return b.conn, nil
}

func (b *Backend) setProperty(name string, value any) error {
	c, err := b.live()
	if err != nil {
		return err
	}
	_, err = c.command("set_property", name, value)
	return err
}

func (b *Backend) Play() error  { return b.setProperty("pause", false) }
func (b *Backend) Pause() error { return b.setProperty("pause", true) }

// SetVolume takes a level in [0,1]; mpv's scale is 0-100
func (b *Backend) SetVolume(level float64) error {
	return b.setProperty("volume", level*100)
}

func (b *Backend) SetRate(rate float64) error  { return b.setProperty("speed", rate) }
func (b *Backend) SetFullscreen(on bool) error { return b.setProperty("fullscreen", on) }

// Seek jumps to an absolute position in seconds
func (b *Backend) Seek(seconds float64) error {
	c, err := b.live()
	if err != nil {
		return err
	}
	_, err = c.command("seek", seconds, "absolute")
	return err
}

// Stop unloads the media, leaving mpv idle
func (b *Backend) Stop() error {
	b.mu.Lock()
	b.events = nil
	b.loading = false
	b.mu.Unlock()

	c, err := b.live()
	if err != nil {
		return nil
	}
	_, err = c.command("stop")
	return err
}

// Close quits mpv
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.events = nil
	c := b.conn
	b.mu.Unlock()

	if c != nil {
		_, _ = c.command("quit")
	}

	b.mu.Lock()
	b.teardownLocked()
	b.mu.Unlock()
	b.queue.close()
	return nil
}

// eventQueue delivers callbacks in order on its own goroutine so the IPC
// reader never waits on a slow handler
type eventQueue struct {
	mu     sync.Mutex
	items  []func()
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	for {
		select {
		case <-q.signal:
		case <-q.done:
			return
		}
		for {
			q.mu.Lock()
			if len(q.items) == 0 {
				q.mu.Unlock()
				break
			}
			fn := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			fn()
		}
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}
