// Package notify queues user-facing notifications and shows them one at a
// time, each for its own duration.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mmcdole/reel/internal/domain"
)

const (
	DefaultDuration = 4 * time.Second
	errorDuration   = 6 * time.Second
	defaultCapacity = 20
)

// Notification is a single message waiting for or in display
type Notification struct {
	ID        string
	Level     domain.Level
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Queue is a FIFO of notifications. The head is shown from the moment it
// reaches the front until its duration elapses. Queue implements
// domain.Notifier.
type Queue struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	items   []Notification
	shownAt time.Time // when items[0] reached the front
}

// NewQueue creates an empty queue
func NewQueue(clock clockwork.Clock, logger *slog.Logger) *Queue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		clock:    clock,
		logger:   logger,
		capacity: defaultCapacity,
	}
}

// Notify enqueues message with the default duration for its level
func (q *Queue) Notify(level domain.Level, message string) {
	d := DefaultDuration
	if level == domain.LevelError {
		d = errorDuration
	}
	q.Push(level, message, d)
}

// Push enqueues message for d and returns its id. A message identical to
// the last queued one is not repeated.
func (q *Queue) Push(level domain.Level, message string, d time.Duration) string {
	if d <= 0 {
		d = DefaultDuration
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock.Now()
	q.pruneLocked(now)

	if n := len(q.items); n > 0 {
		last := q.items[n-1]
		if last.Level == level && last.Message == message {
			return last.ID
		}
	}

	item := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Duration:  d,
		CreatedAt: now,
	}
	q.items = append(q.items, item)
	if len(q.items) == 1 {
		q.shownAt = now
	}

	// drop the oldest waiting items, never the one on display
	for len(q.items) > q.capacity {
		q.items = append(q.items[:1], q.items[2:]...)
	}

	q.logger.Debug("notification queued", "id", item.ID, "level", level.String(), "message", message)
	return item.ID
}

// Current returns the notification on display, if any
func (q *Queue) Current() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked(q.clock.Now())
	if len(q.items) == 0 {
		return Notification{}, false
	}
	return q.items[0], true
}

// Pending returns how many notifications wait behind the current one
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked(q.clock.Now())
	return max(len(q.items)-1, 0)
}

// Dismiss removes the notification with id
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID != id {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		if i == 0 {
			q.shownAt = q.clock.Now()
		}
		return
	}
}

// pruneLocked drops expired heads; each successor's display starts when
// its predecessor's ended
func (q *Queue) pruneLocked(now time.Time) {
	for len(q.items) > 0 {
		end := q.shownAt.Add(q.items[0].Duration)
		if now.Before(end) {
			return
		}
		q.items = q.items[1:]
		q.shownAt = end
	}
}
