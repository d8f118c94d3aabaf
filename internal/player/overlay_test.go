package player

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type visibilityLog struct {
	mu      sync.Mutex
	changes []bool
}

func (l *visibilityLog) record(visible bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, visible)
}

func (l *visibilityLog) snapshot() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.changes...)
}

func TestOverlayVisibleWhileNotPlaying(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := NewOverlay(clock, 3*time.Second, nil)

	if !o.Visible() || o.Armed() {
		t.Fatal("new overlay should be visible with no timer")
	}
	o.Activity()
	clock.Advance(time.Hour)
	if !o.Visible() || o.Armed() {
		t.Error("overlay must stay visible when not playing")
	}
}

func TestOverlayHidesAfterInactivity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := &visibilityLog{}
	o := NewOverlay(clock, 3000*time.Millisecond, log.record)

	o.SetPlaying(true)
	clock.Advance(2999 * time.Millisecond)
	if !o.Visible() {
		t.Fatal("overlay hid before the inactivity window elapsed")
	}

	clock.Advance(time.Millisecond)
	waitFor(t, "overlay hidden", func() bool { return !o.Visible() })

	if got := log.snapshot(); len(got) != 1 || got[0] {
		t.Errorf("expected a single hide notification, got %v", got)
	}
}

func TestOverlayActivityRestartsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := NewOverlay(clock, 3*time.Second, nil)
	o.SetPlaying(true)

	clock.Advance(2 * time.Second)
	o.Activity()
	clock.Advance(2 * time.Second)
	if !o.Visible() {
		t.Fatal("activity should have restarted the window")
	}

	clock.Advance(time.Second)
	waitFor(t, "overlay hidden", func() bool { return !o.Visible() })

	o.Activity()
	if !o.Visible() || !o.Armed() {
		t.Error("activity should show the overlay and arm a new timer")
	}
}

func TestOverlayRapidActivityKeepsOneTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := &visibilityLog{}
	o := NewOverlay(clock, 3*time.Second, log.record)
	o.SetPlaying(true)

	for range 50 {
		clock.Advance(100 * time.Millisecond)
		o.Activity()
	}
	if !o.Visible() {
		t.Fatal("overlay hid during continuous activity")
	}

	clock.Advance(3 * time.Second)
	waitFor(t, "overlay hidden", func() bool { return !o.Visible() })
	clock.Advance(time.Minute)

	// let any stray callbacks run before counting
	time.Sleep(10 * time.Millisecond)
	if got := log.snapshot(); len(got) != 1 {
		t.Errorf("expected exactly one hide, got %v", got)
	}
}

func TestOverlayLeavingPlaybackShowsAndDisarms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := &visibilityLog{}
	o := NewOverlay(clock, 3*time.Second, log.record)

	o.SetPlaying(true)
	clock.Advance(3 * time.Second)
	waitFor(t, "overlay hidden", func() bool { return !o.Visible() })

	o.SetPlaying(false)
	if !o.Visible() || o.Armed() {
		t.Fatal("leaving playback should show the overlay with no timer")
	}
	clock.Advance(time.Hour)
	if !o.Visible() {
		t.Error("overlay hid while not playing")
	}

	if got := log.snapshot(); len(got) != 2 || got[0] || !got[1] {
		t.Errorf("expected hide then show, got %v", got)
	}
}

func TestOverlayStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := NewOverlay(clock, 3*time.Second, nil)
	o.SetPlaying(true)

	o.Stop()
	if o.Armed() {
		t.Fatal("Stop should disarm the timer")
	}
	o.SetPlaying(true)
	o.Activity()
	clock.Advance(time.Hour)
	if !o.Visible() || o.Armed() {
		t.Error("stopped overlay must stay inert")
	}
}
