package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/domain"
)

var errNoFullscreen = errors.New("fullscreen not supported")

// fakeBackend records commands and lets tests emit events
type fakeBackend struct {
	mu            sync.Mutex
	handlers      []func(Event)
	urls          []string
	openErr       error
	fullscreenErr error
	playing       bool
	volume        float64
	rate          float64
	seekTo        float64
	fullscreen    bool
	stops         int
	closed        bool
}

func (f *fakeBackend) Open(ctx context.Context, url string, events func(Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.urls = append(f.urls, url)
	f.handlers = append(f.handlers, events)
	return nil
}

func (f *fakeBackend) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	return nil
}

func (f *fakeBackend) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return nil
}

func (f *fakeBackend) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekTo = seconds
	return nil
}

func (f *fakeBackend) SetVolume(level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = level
	return nil
}

func (f *fakeBackend) SetRate(rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	return nil
}

func (f *fakeBackend) SetFullscreen(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fullscreenErr != nil {
		return f.fullscreenErr
	}
	f.fullscreen = on
	return nil
}

func (f *fakeBackend) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.playing = false
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeBackend) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// emit delivers ev through the handler of the latest Open
func (f *fakeBackend) emit(ev Event) {
	f.emitTo(f.opens()-1, ev)
}

// emitTo delivers ev through the handler of the i-th Open
func (f *fakeBackend) emitTo(i int, ev Event) {
	f.mu.Lock()
	h := f.handlers[i]
	f.mu.Unlock()
	h(ev)
}

func (f *fakeBackend) state() (playing bool, volume, rate, seekTo float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing, f.volume, f.rate, f.seekTo
}

type note struct {
	level domain.Level
	msg   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (r *recordingNotifier) Notify(level domain.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{level, msg})
}

func (r *recordingNotifier) count(level domain.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, nt := range r.notes {
		if nt.level == level {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type harness struct {
	ctrl     *Controller
	backend  *fakeBackend
	notifier *recordingNotifier
	clock    clockwork.FakeClock
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		backend:  &fakeBackend{},
		notifier: &recordingNotifier{},
		clock:    clockwork.NewFakeClock(),
	}
	h.ctrl = NewController(h.backend, cfg, h.notifier, adapter.NullLogger(), WithClock(h.clock))
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

// load runs Load and answers it with a ready event carrying duration
func (h *harness) load(t *testing.T, duration float64) {
	t.Helper()
	before := h.backend.opens()
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.Load(context.Background(), "https://media.example/video.mp4") }()

	waitFor(t, "backend open", func() bool { return h.backend.opens() > before })
	h.backend.emit(Event{Kind: EventReady, Duration: duration})

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return after ready")
	}
}
