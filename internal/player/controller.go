package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mmcdole/reel/internal/domain"
)

// ErrSuperseded is returned by a Load that was replaced by a newer Load
var ErrSuperseded = errors.New("load superseded by a newer load")

// Option configures a Controller
type Option func(*Controller)

// WithClock sets the clock driving the overlay timer
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.timer = clock }
}

// Controller owns the playback state machine for one media surface.
//
// Transitions:
//
//	Idle -> Loading -> Paused|Playing <-> Buffering -> Ended
//	any  -> Error
//
// Load of a new URL starts over from Loading.
type Controller struct {
	clock    *Clock
	overlay  *Overlay
	timer    clockwork.Clock
	notifier domain.Notifier
	logger   *slog.Logger
	cfg      Config

	mu          sync.Mutex
	state       State
	resume      State // play intent held while buffering
	url         string
	session     uint64
	ready       chan error
	volume      float64
	lastAudible float64
	muted       bool
	rate        float64
	fullscreen  bool
	closed      bool
	seq         uint64
	subs        map[int]func(Snapshot)
	nextSub     int
}

// NewController creates an idle controller over backend
func NewController(backend Backend, cfg Config, notifier domain.Notifier, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	cfg = cfg.normalize()

	c := &Controller{
		clock:    NewClock(backend),
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		state:    StateIdle,
		volume:   cfg.InitialVolume,
		muted:    cfg.InitialVolume == 0,
		rate:     cfg.InitialRate,
		subs:     make(map[int]func(Snapshot)),
	}
	if cfg.InitialVolume > 0 {
		c.lastAudible = cfg.InitialVolume
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timer == nil {
		c.timer = clockwork.NewRealClock()
	}

	// Only the timer hides the overlay; every other change is published
	// by the operation that caused it.
	c.overlay = NewOverlay(c.timer, cfg.OverlayTimeout, func(visible bool) {
		if !visible {
			c.publish()
		}
	})
	return c
}

// Load opens url and blocks until the media is ready, fails, or ctx ends.
// A ready media is left Paused unless the controller was configured to
// auto-play. Cancelling ctx stops the media and returns to Idle.
func (c *Controller) Load(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.signalReadyLocked(ErrSuperseded)
	c.session++
	session := c.session
	ready := make(chan error, 1)
	c.ready = ready
	c.url = url
	c.setStateLocked(StateLoading)
	c.mu.Unlock()
	c.publish()

	c.logger.Info("loading media", "url", url)

	err := c.clock.Open(ctx, url, func(ev Event) { c.handleEvent(session, ev) })
	if err != nil {
		if ctx.Err() != nil {
			c.abandon(session)
			return ctx.Err()
		}
		err = fmt.Errorf("failed to open media: %w", err)
		c.fail(session, err)
		return err
	}
	if c.superseded(session) {
		return ErrSuperseded
	}

	select {
	case err := <-ready:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		c.abandon(session)
		return ctx.Err()
	}

	return c.start(session)
}

// start applies the audio settings once media is ready and auto-plays
// when configured.
func (c *Controller) start(session uint64) error {
	c.mu.Lock()
	if c.closed || session != c.session {
		c.mu.Unlock()
		return ErrSuperseded
	}
	volume, rate := c.effectiveVolumeLocked(), c.rate
	autoPlay := c.cfg.AutoPlay && c.state == StatePaused
	c.mu.Unlock()

	if err := c.clock.SetVolume(volume); err != nil {
		c.logger.Warn("failed to apply volume", "error", err)
	}
	if err := c.clock.SetRate(rate); err != nil {
		c.logger.Warn("failed to apply playback rate", "error", err)
	}

	var playErr error
	if autoPlay {
		playErr = c.clock.Play()
	}

	c.mu.Lock()
	if c.closed || session != c.session {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if autoPlay && playErr == nil {
		c.intendLocked(true)
	}
	c.seq++
	c.mu.Unlock()

	if playErr != nil {
		c.warn("Could not start playback", playErr)
	}
	c.publish()
	return nil
}

// superseded reports whether session was replaced while its media was
// opening. Media that finished opening after an Unload is stopped.
func (c *Controller) superseded(session uint64) bool {
	c.mu.Lock()
	stale := session != c.session
	orphaned := stale && !c.closed && c.state == StateIdle
	c.mu.Unlock()

	if orphaned {
		if err := c.clock.Stop(); err != nil {
			c.logger.Warn("failed to stop media", "error", err)
		}
	}
	return stale
}

// abandon stops a load whose caller gave up
func (c *Controller) abandon(session uint64) {
	c.mu.Lock()
	if c.closed || session != c.session {
		c.mu.Unlock()
		return
	}
	c.session++
	c.ready = nil
	c.url = ""
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	if err := c.clock.Stop(); err != nil {
		c.logger.Warn("failed to stop media", "error", err)
	}
	c.logger.Debug("load abandoned")
	c.publish()
}

// fail moves the current session to Error
func (c *Controller) fail(session uint64, err error) {
	c.mu.Lock()
	if c.closed || session != c.session {
		c.mu.Unlock()
		return
	}
	c.signalReadyLocked(err)
	c.setStateLocked(StateError)
	c.mu.Unlock()

	c.logger.Error("playback failed", "error", err)
	c.notifier.Notify(domain.LevelError, "Playback failed: "+err.Error())
	c.publish()
}

// handleEvent applies a backend event from the given load session
func (c *Controller) handleEvent(session uint64, ev Event) {
	if ev.Kind == EventError {
		err := ev.Err
		if err == nil {
			err = errors.New("media backend error")
		}
		c.fail(session, err)
		return
	}

	c.mu.Lock()
	if c.closed || session != c.session {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case EventReady:
		if c.state == StateLoading {
			c.setStateLocked(StatePaused)
			c.signalReadyLocked(nil)
		}
	case EventBufferStart:
		if c.state == StatePlaying || c.state == StatePaused {
			c.resume = c.state
			c.setStateLocked(StateBuffering)
		}
	case EventBufferEnd:
		if c.state == StateBuffering {
			c.setStateLocked(c.resume)
		}
	case EventEnded:
		if c.state.Active() {
			c.setStateLocked(StateEnded)
		}
	}
	c.seq++
	c.mu.Unlock()

	c.publish()
}

// TogglePlayPause flips between Playing and Paused. While buffering it
// flips the intent that takes effect when buffering ends.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	state, resume, session := c.state, c.resume, c.session
	c.mu.Unlock()

	var play bool
	switch state {
	case StatePlaying:
		play = false
	case StatePaused:
		play = true
	case StateBuffering:
		play = resume != StatePlaying
	default:
		c.notifier.Notify(domain.LevelWarning, fmt.Sprintf("Cannot play or pause while %s", state))
		return fmt.Errorf("%w: play/pause while %s", ErrInvalidTransition, state)
	}

	var err error
	if play {
		err = c.clock.Play()
	} else {
		err = c.clock.Pause()
	}
	if err != nil {
		c.warn("Playback command failed", err)
		return err
	}

	c.mu.Lock()
	if c.closed || session != c.session {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.intendLocked(play)
	c.mu.Unlock()

	c.publish()
	return nil
}

// intendLocked records a play or pause the backend accepted. While
// buffering only the intent changes.
func (c *Controller) intendLocked(play bool) {
	target := StatePaused
	if play {
		target = StatePlaying
	}
	switch c.state {
	case StatePlaying, StatePaused:
		c.setStateLocked(target)
	case StateBuffering:
		c.resume = target
		c.seq++
	}
}

// Seek moves to seconds, clamped to [0, duration]. Elapsed time is
// updated immediately; the play/pause state is unchanged.
func (c *Controller) Seek(seconds float64) (float64, error) {
	c.mu.Lock()
	if !c.state.Active() {
		state := c.state
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: seek while %s", ErrInvalidTransition, state)
	}
	c.mu.Unlock()

	target, err := c.clock.Seek(seconds)

	c.mu.Lock()
	c.seq++
	c.mu.Unlock()

	if err != nil {
		c.warn("Seek failed", err)
	}
	c.publish()
	return target, err
}

// SeekFraction seeks to fraction f of the duration
func (c *Controller) SeekFraction(f float64) (float64, error) {
	f = min(max(f, 0), 1)
	return c.Seek(f * c.clock.Duration())
}

// SeekBy seeks relative to the current position
func (c *Controller) SeekBy(delta float64) (float64, error) {
	return c.Seek(c.clock.Elapsed() + delta)
}

// SetVolume sets the level, clamped to [0,1]. Zero mutes; any positive
// level un-mutes.
func (c *Controller) SetVolume(level float64) {
	c.mu.Lock()
	level = clampVolume(level)
	c.volume = level
	if level > 0 {
		c.lastAudible = level
		c.muted = false
	} else {
		c.muted = true
	}
	level, open := c.effectiveVolumeLocked(), c.mediaOpenLocked()
	c.seq++
	c.mu.Unlock()

	c.pushVolume(level, open)
	c.publish()
}

// ToggleMute mutes, or un-mutes restoring the level from before the mute
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	if c.muted {
		c.muted = false
		if c.volume == 0 {
			c.volume = DefaultUnmuteVolume
			if c.lastAudible > 0 {
				c.volume = c.lastAudible
			}
		}
	} else {
		c.muted = true
		if c.volume > 0 {
			c.lastAudible = c.volume
		}
	}
	level, open := c.effectiveVolumeLocked(), c.mediaOpenLocked()
	c.seq++
	c.mu.Unlock()

	c.pushVolume(level, open)
	c.publish()
}

// SetPlaybackRate sets the speed; rates outside Rates are rejected
func (c *Controller) SetPlaybackRate(rate float64) error {
	if !ValidRate(rate) {
		return fmt.Errorf("%w: %v", ErrUnsupportedRate, rate)
	}

	c.mu.Lock()
	c.rate = rate
	open := c.mediaOpenLocked()
	c.seq++
	c.mu.Unlock()

	if open {
		if err := c.clock.SetRate(rate); err != nil {
			c.logger.Warn("failed to apply playback rate", "rate", rate, "error", err)
		}
	}
	c.publish()
	return nil
}

// ToggleFullscreen asks the backend for fullscreen. A refusal is reported
// to the notifier as a warning and leaves the state unchanged.
func (c *Controller) ToggleFullscreen() error {
	c.mu.Lock()
	want := !c.fullscreen
	c.mu.Unlock()

	if err := c.clock.SetFullscreen(want); err != nil {
		c.warn("Fullscreen unavailable", err)
		return err
	}

	c.mu.Lock()
	c.fullscreen = want
	c.seq++
	c.mu.Unlock()

	c.publish()
	return nil
}

// Unload stops the current media and returns to Idle, clearing the
// overlay timer. A Load still waiting for its media returns ErrSuperseded.
func (c *Controller) Unload() error {
	return c.unload(0, false)
}

// UnloadSession is Unload for the media of session only. It does nothing
// once a newer Load has started.
func (c *Controller) UnloadSession(session uint64) error {
	return c.unload(session, true)
}

func (c *Controller) unload(session uint64, exact bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if exact && session != c.session {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateIdle && c.url == "" {
		c.mu.Unlock()
		return nil
	}
	c.signalReadyLocked(ErrSuperseded)
	c.session++
	c.url = ""
	c.resume = StatePaused
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	err := c.clock.Stop()
	if err != nil {
		c.logger.Warn("failed to stop media", "error", err)
	}
	c.logger.Debug("media unloaded")
	c.publish()
	return err
}

// Activity records pointer or key input for the overlay
func (c *Controller) Activity() {
	c.overlay.Activity()
	c.mu.Lock()
	c.seq++
	c.mu.Unlock()
	c.publish()
}

// Close stops the overlay timer and releases the backend. Later backend
// events are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.session++
	c.signalReadyLocked(ErrClosed)
	c.mu.Unlock()

	c.overlay.Stop()
	err := c.clock.Close()

	c.mu.Lock()
	c.subs = make(map[int]func(Snapshot))
	c.mu.Unlock()

	c.logger.Debug("player closed")
	return err
}

// Snapshot returns the current playback state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive snapshots after every change.
// fn runs on the goroutine that made the change and must not block.
// The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	if c.closed || len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:            c.seq,
		Session:        c.session,
		URL:            c.url,
		State:          c.state,
		Elapsed:        c.clock.Elapsed(),
		Duration:       c.clock.Duration(),
		Volume:         c.volume,
		Muted:          c.muted,
		Rate:           c.rate,
		Fullscreen:     c.fullscreen,
		OverlayVisible: c.overlay.Visible(),
	}
}

// setStateLocked moves to s and keeps the overlay in step
func (c *Controller) setStateLocked(s State) {
	if s == c.state {
		return
	}
	c.logger.Debug("playback state", "from", c.state, "to", s)
	c.state = s
	c.seq++
	c.overlay.SetPlaying(s == StatePlaying)
}

func (c *Controller) signalReadyLocked(err error) {
	if c.ready == nil {
		return
	}
	select {
	case c.ready <- err:
	default:
	}
	c.ready = nil
}

func (c *Controller) mediaOpenLocked() bool {
	return c.state.Active() || c.state == StateEnded
}

func (c *Controller) effectiveVolumeLocked() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

func (c *Controller) pushVolume(level float64, open bool) {
	if !open {
		return
	}
	if err := c.clock.SetVolume(level); err != nil {
		c.logger.Warn("failed to apply volume", "error", err)
	}
}

func (c *Controller) warn(msg string, err error) {
	c.logger.Warn(msg, "error", err)
	c.notifier.Notify(domain.LevelWarning, fmt.Sprintf("%s: %v", msg, err))
}
