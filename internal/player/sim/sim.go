// Package sim provides an in-process player.Backend that simulates a media
// timeline without decoding anything. It backs the player on machines
// without mpv and drives the TUI in offline demos.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mmcdole/reel/internal/player"
)

// ErrFullscreenUnsupported is returned by SetFullscreen
var ErrFullscreenUnsupported = errors.New("fullscreen is not supported by the simulated player")

var errNotLoaded = errors.New("no media loaded")

const (
	defaultTick      = 250 * time.Millisecond
	defaultLoadDelay = 300 * time.Millisecond
	defaultDuration  = 300
)

// Option configures a Backend
type Option func(*Backend)

// WithClock sets the clock driving load delay and ticks
func WithClock(clock clockwork.Clock) Option {
	return func(b *Backend) { b.clock = clock }
}

// WithTick sets how often the position advances
func WithTick(d time.Duration) Option {
	return func(b *Backend) { b.tick = d }
}

// WithLoadDelay sets how long Open takes to report ready
func WithLoadDelay(d time.Duration) Option {
	return func(b *Backend) { b.loadDelay = d }
}

// WithDurationLookup sets how the media length is found for a URL.
// Lookups returning 0 fall back to five minutes.
func WithDurationLookup(fn func(url string) float64) Option {
	return func(b *Backend) { b.lookup = fn }
}

// Backend is a simulated media element
type Backend struct {
	clock     clockwork.Clock
	tick      time.Duration
	loadDelay time.Duration
	lookup    func(url string) float64

	mu       sync.Mutex
	session  uint64
	events   func(player.Event)
	loaded   bool
	playing  bool
	position float64
	duration float64
	rate     float64
	volume   float64
	ticker   clockwork.Ticker
	stopTick chan struct{}
	loadTmr  clockwork.Timer
	closed   bool
}

// New creates a simulated backend
func New(opts ...Option) *Backend {
	b := &Backend{
		clock:     clockwork.NewRealClock(),
		tick:      defaultTick,
		loadDelay: defaultLoadDelay,
		rate:      1,
		volume:    1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open simulates loading url; EventReady follows after the load delay
func (b *Backend) Open(ctx context.Context, url string, events func(player.Event)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	duration := 0.0
	if b.lookup != nil {
		duration = b.lookup(url)
	}
	if duration <= 0 {
		duration = defaultDuration
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return player.ErrClosed
	}
	b.resetLocked()
	b.session++
	session := b.session
	b.events = events
	b.duration = duration
	b.loadTmr = b.clock.AfterFunc(b.loadDelay, func() { b.ready(session) })
	return nil
}

func (b *Backend) ready(session uint64) {
	b.mu.Lock()
	if session != b.session {
		b.mu.Unlock()
		return
	}
	b.loaded = true
	b.loadTmr = nil
	handler, duration := b.events, b.duration
	b.mu.Unlock()

	if handler != nil {
		handler(player.Event{Kind: player.EventReady, Duration: duration})
	}
}

// Play starts advancing the position
func (b *Backend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	if b.position >= b.duration {
		b.position = 0
	}
	b.playing = true
	if b.ticker == nil {
		b.ticker = b.clock.NewTicker(b.tick)
		b.stopTick = make(chan struct{})
		go b.run(b.session, b.ticker, b.stopTick)
	}
	return nil
}

func (b *Backend) run(session uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			b.advance(session)
		}
	}
}

// advance moves the position one tick and reports it
func (b *Backend) advance(session uint64) {
	b.mu.Lock()
	if session != b.session || !b.playing {
		b.mu.Unlock()
		return
	}
	b.position = min(b.position+b.rate*b.tick.Seconds(), b.duration)
	ended := b.position >= b.duration
	if ended {
		b.playing = false
		b.stopTickerLocked()
	}
	handler, pos := b.events, b.position
	b.mu.Unlock()

	if handler == nil {
		return
	}
	handler(player.Event{Kind: player.EventTime, Position: pos})
	if ended {
		handler(player.Event{Kind: player.EventEnded})
	}
}

// Pause stops advancing the position
func (b *Backend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	b.playing = false
	b.stopTickerLocked()
	return nil
}

// Seek moves the position, clamped to the media length
func (b *Backend) Seek(seconds float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	b.position = min(max(seconds, 0), b.duration)
	return nil
}

// SetVolume records the level; the simulation is silent
func (b *Backend) SetVolume(level float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = level
	return nil
}

// SetRate changes how far each tick advances
func (b *Backend) SetRate(rate float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = rate
	return nil
}

// SetFullscreen always fails; there is no surface to enlarge
func (b *Backend) SetFullscreen(on bool) error {
	return ErrFullscreenUnsupported
}

// Stop unloads the media
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.session++
	return nil
}

// Close stops the simulation
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.session++
	b.closed = true
	return nil
}

// Position returns the simulated position in seconds
func (b *Backend) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

func (b *Backend) resetLocked() {
	if b.loadTmr != nil {
		b.loadTmr.Stop()
		b.loadTmr = nil
	}
	b.stopTickerLocked()
	b.events = nil
	b.loaded = false
	b.playing = false
	b.position = 0
}

func (b *Backend) stopTickerLocked() {
	if b.ticker == nil {
		return
	}
	b.ticker.Stop()
	close(b.stopTick)
	b.ticker = nil
	b.stopTick = nil
}
