package player

import "context"

// EventKind identifies a media backend event
type EventKind int

const (
	EventReady EventKind = iota
	EventTime
	EventDuration
	EventBufferStart
	EventBufferEnd
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventTime:
		return "time"
	case EventDuration:
		return "duration"
	case EventBufferStart:
		return "buffer-start"
	case EventBufferEnd:
		return "buffer-end"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is reported by a Backend while media is open.
// Position and Duration are in seconds; Err is set for EventError.
type Event struct {
	Kind     EventKind
	Position float64
	Duration float64
	Err      error
}

// Backend is the media element a Controller drives.
//
// Implementations deliver events through the callback given to Open. The
// callback must not be invoked from inside a command method; events are
// delivered from the backend's own goroutine.
type Backend interface {
	// Open starts loading url. Readiness is reported later as EventReady.
	Open(ctx context.Context, url string, events func(Event)) error

	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(level float64) error
	SetRate(rate float64) error
	SetFullscreen(on bool) error

	// Stop unloads the current media but keeps the backend usable
	Stop() error

	// Close releases the backend
	Close() error
}
