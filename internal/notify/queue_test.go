package notify

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mmcdole/reel/internal/domain"
)

func TestQueueShowsInOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewQueue(clock, nil)

	if _, ok := q.Current(); ok {
		t.Fatal("new queue should be empty")
	}

	q.Push(domain.LevelInfo, "first", time.Second)
	q.Push(domain.LevelWarning, "second", 2*time.Second)

	cur, ok := q.Current()
	if !ok || cur.Message != "first" || q.Pending() != 1 {
		t.Fatalf("expected first with one pending, got %+v pending=%d", cur, q.Pending())
	}

	clock.Advance(time.Second)
	if cur, _ := q.Current(); cur.Message != "second" {
		t.Fatalf("expected second after first expired, got %q", cur.Message)
	}

	clock.Advance(1999 * time.Millisecond)
	if _, ok := q.Current(); !ok {
		t.Fatal("second should still be on display")
	}
	clock.Advance(time.Millisecond)
	if _, ok := q.Current(); ok {
		t.Error("queue should be empty")
	}
}

func TestQueueDurations(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewQueue(clock, nil)

	q.Notify(domain.LevelSuccess, "saved")
	q.Notify(domain.LevelError, "failed")

	clock.Advance(DefaultDuration)
	cur, ok := q.Current()
	if !ok || cur.Level != domain.LevelError {
		t.Fatalf("expected error notification, got %+v", cur)
	}
	clock.Advance(DefaultDuration)
	if _, ok := q.Current(); !ok {
		t.Error("errors should stay longer than the default duration")
	}
}

func TestQueueSkipsRepeats(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock(), nil)
	q.Notify(domain.LevelWarning, "rate limited")
	q.Notify(domain.LevelWarning, "rate limited")
	if q.Pending() != 0 {
		t.Errorf("repeat should be collapsed, pending=%d", q.Pending())
	}
}

func TestQueueDismiss(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock(), nil)
	id := q.Push(domain.LevelInfo, "one", time.Minute)
	q.Push(domain.LevelInfo, "two", time.Minute)

	if id == "" {
		t.Fatal("expected an id")
	}
	q.Dismiss(id)
	if cur, _ := q.Current(); cur.Message != "two" {
		t.Errorf("expected two after dismiss, got %q", cur.Message)
	}
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock(), nil)
	for i := range defaultCapacity + 5 {
		q.Push(domain.LevelInfo, string(rune('a'+i)), time.Minute)
	}
	if cur, _ := q.Current(); cur.Message != "a" {
		t.Errorf("the displayed notification must survive overflow, got %q", cur.Message)
	}
	if got := q.Pending(); got != defaultCapacity-1 {
		t.Errorf("pending = %d, want %d", got, defaultCapacity-1)
	}
}
