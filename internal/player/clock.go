package player

import (
	"context"
	"sync"
)

// Clock wraps a Backend and tracks the media timeline: elapsed time,
// duration and buffering. Events from a previous Open are dropped.
type Clock struct {
	backend Backend

	mu        sync.Mutex
	session   uint64
	elapsed   float64
	duration  float64
	buffering bool
}

// NewClock creates a clock over backend
func NewClock(backend Backend) *Clock {
	return &Clock{backend: backend}
}

// Open loads url on the backend and forwards timeline events to handler
// after they have been applied to the clock.
func (c *Clock) Open(ctx context.Context, url string, handler func(Event)) error {
	c.mu.Lock()
	c.session++
	session := c.session
	c.elapsed, c.duration, c.buffering = 0, 0, false
	c.mu.Unlock()

	return c.backend.Open(ctx, url, func(ev Event) {
		if !c.apply(session, &ev) {
			return
		}
		handler(ev)
	})
}

// apply records ev and reports whether it belongs to the current session
func (c *Clock) apply(session uint64, ev *Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session != c.session {
		return false
	}

	if ev.Duration > 0 {
		c.duration = ev.Duration
	}
	switch ev.Kind {
	case EventTime:
		c.elapsed = c.clamp(ev.Position)
	case EventBufferStart:
		c.buffering = true
	case EventBufferEnd:
		c.buffering = false
	case EventEnded:
		if c.duration > 0 {
			c.elapsed = c.duration
		}
		c.buffering = false
	}
	ev.Position = c.elapsed
	ev.Duration = c.duration
	return true
}

// clamp bounds pos to [0, duration]; only the lower bound applies while
// the duration is unknown. Must hold c.mu.
func (c *Clock) clamp(pos float64) float64 {
	pos = max(pos, 0)
	if c.duration > 0 {
		pos = min(pos, c.duration)
	}
	return pos
}

// Elapsed returns the current position in seconds
func (c *Clock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Duration returns the media length in seconds, 0 until known
func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Buffering reports whether the backend is waiting for data
func (c *Clock) Buffering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffering
}

// Seek clamps target, records it as the elapsed time immediately and
// instructs the backend to seek. It returns the clamped target.
func (c *Clock) Seek(target float64) (float64, error) {
	c.mu.Lock()
	target = c.clamp(target)
	c.elapsed = target
	c.mu.Unlock()

	return target, c.backend.Seek(target)
}

func (c *Clock) Play() error                   { return c.backend.Play() }
func (c *Clock) Pause() error                  { return c.backend.Pause() }
func (c *Clock) SetVolume(level float64) error { return c.backend.SetVolume(level) }
func (c *Clock) SetRate(rate float64) error    { return c.backend.SetRate(rate) }
func (c *Clock) SetFullscreen(on bool) error   { return c.backend.SetFullscreen(on) }

// Stop unloads the media, resets the timeline and drops any later events
// from it
func (c *Clock) Stop() error {
	c.invalidate()
	c.mu.Lock()
	c.elapsed, c.duration = 0, 0
	c.mu.Unlock()
	return c.backend.Stop()
}

// Close releases the backend and drops any later events
func (c *Clock) Close() error {
	c.invalidate()
	return c.backend.Close()
}

func (c *Clock) invalidate() {
	c.mu.Lock()
	c.session++
	c.buffering = false
	c.mu.Unlock()
}
