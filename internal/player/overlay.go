package player

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Overlay shows and hides the playback controls.
//
// It is either Visible (with at most one armed hide timer) or Hidden. The
// timer is armed only while playing. rearm is the only place a timer is
// created or cancelled; a generation counter discards fires from timers
// that were cancelled after they had already started to run.
type Overlay struct {
	clock    clockwork.Clock
	timeout  time.Duration
	onChange func(visible bool)

	mu      sync.Mutex
	visible bool
	playing bool
	stopped bool
	timer   clockwork.Timer
	gen     uint64
}

// NewOverlay creates a visible overlay. onChange, if non-nil, is called
// outside the overlay lock whenever visibility flips.
func NewOverlay(clock clockwork.Clock, timeout time.Duration, onChange func(visible bool)) *Overlay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultOverlayTimeout
	}
	return &Overlay{
		clock:    clock,
		timeout:  timeout,
		onChange: onChange,
		visible:  true,
	}
}

// Visible reports whether the controls are shown
func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

// Armed reports whether a hide timer is pending
func (o *Overlay) Armed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timer != nil
}

// Activity records pointer or key input: show and restart the window
func (o *Overlay) Activity() {
	o.mu.Lock()
	changed := o.rearm()
	o.mu.Unlock()
	o.changed(changed, true)
}

// SetPlaying follows the controller's play state. Leaving playback shows
// the overlay and disarms the timer; entering it starts the window.
func (o *Overlay) SetPlaying(playing bool) {
	o.mu.Lock()
	if o.playing == playing {
		o.mu.Unlock()
		return
	}
	o.playing = playing
	changed := o.rearm()
	o.mu.Unlock()
	o.changed(changed, true)
}

// Stop cancels any armed timer; the overlay stays visible and inert
func (o *Overlay) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.playing = false
	changed := o.rearm()
	o.mu.Unlock()
	o.changed(changed, true)
}

// rearm cancels the armed timer, shows the overlay, and arms a new timer
// when playing. Must hold o.mu. Reports whether visibility changed.
func (o *Overlay) rearm() bool {
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	changed := !o.visible
	o.visible = true

	if o.playing && !o.stopped {
		gen := o.gen
		o.timer = o.clock.AfterFunc(o.timeout, func() { o.fire(gen) })
	}
	return changed
}

// fire hides the overlay if gen is still the armed generation
func (o *Overlay) fire(gen uint64) {
	o.mu.Lock()
	if gen != o.gen || !o.playing || o.stopped {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	changed := o.visible
	o.visible = false
	o.mu.Unlock()
	o.changed(changed, false)
}

func (o *Overlay) changed(changed, visible bool) {
	if changed && o.onChange != nil {
		o.onChange(visible)
	}
}
