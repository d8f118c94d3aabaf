// Package player drives a single media surface through playback transitions
// and keeps a timed auto-hiding control overlay in step with it.
package player

import (
	"errors"
	"slices"
	"time"
)

// State is the playback state of a Controller
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateBuffering
	StateEnded
	StateError
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether media is loaded and can take transport commands
func (s State) Active() bool {
	return s == StatePlaying || s == StatePaused || s == StateBuffering
}

var (
	// ErrEmptyURL is returned by Load when no media URL is given
	ErrEmptyURL = errors.New("media URL is empty")

	// ErrInvalidTransition is returned when an operation is not valid in the current state
	ErrInvalidTransition = errors.New("operation not valid in current playback state")

	// ErrUnsupportedRate is returned for playback rates outside Rates
	ErrUnsupportedRate = errors.New("unsupported playback rate")

	// ErrClosed is returned once the controller has been closed
	ErrClosed = errors.New("player is closed")
)

// Rates is the set of supported playback rates, slowest first
var Rates = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// ValidRate reports whether rate is one of Rates
func ValidRate(rate float64) bool {
	return slices.Contains(Rates, rate)
}

// NextRate returns the rate one step faster (step > 0) or slower (step < 0)
// than current, staying within Rates.
func NextRate(current float64, step int) float64 {
	i := slices.Index(Rates, current)
	if i < 0 {
		i = slices.Index(Rates, 1)
	}
	i = min(max(i+step, 0), len(Rates)-1)
	return Rates[i]
}

const (
	// DefaultUnmuteVolume is restored when un-muting with no prior audible level
	DefaultUnmuteVolume = 0.8

	// DefaultOverlayTimeout is the inactivity window before the overlay hides
	DefaultOverlayTimeout = 3000 * time.Millisecond
)

// Config holds the options a Controller starts with
type Config struct {
	InitialVolume  float64
	InitialRate    float64
	AutoPlay       bool
	OverlayTimeout time.Duration
}

// DefaultConfig returns full volume, normal speed, no auto-play
func DefaultConfig() Config {
	return Config{
		InitialVolume:  1,
		InitialRate:    1,
		OverlayTimeout: DefaultOverlayTimeout,
	}
}

// normalize clamps volume and falls back to defaults for invalid values
func (c Config) normalize() Config {
	c.InitialVolume = clampVolume(c.InitialVolume)
	if !ValidRate(c.InitialRate) {
		c.InitialRate = 1
	}
	if c.OverlayTimeout <= 0 {
		c.OverlayTimeout = DefaultOverlayTimeout
	}
	return c
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}

// Snapshot is a point-in-time copy of the playback state
type Snapshot struct {
	Seq            uint64 // increases with every change
	Session        uint64 // identifies the media; changes on Load and Unload
	URL            string
	State          State
	Elapsed        float64 // seconds
	Duration       float64 // seconds, 0 until known
	Volume         float64
	Muted          bool
	Rate           float64
	Fullscreen     bool
	OverlayVisible bool
}

// Progress returns elapsed/duration in [0,1], 0 while duration is unknown
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return min(max(s.Elapsed/s.Duration, 0), 1)
}

// EffectiveVolume is the level the media backend plays at
func (s Snapshot) EffectiveVolume() float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}
