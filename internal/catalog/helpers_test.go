package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/domain"
)

// fakeRemote serves the bundled dataset as if it were the catalog server.
// Individual calls can be overridden.
type fakeRemote struct {
	data *fallback.Dataset

	list      func(ctx context.Context, filter domain.Filter) (domain.Page, error)
	get       func(ctx context.Context, id string) (*domain.Video, error)
	like      func(ctx context.Context, id string) (*domain.ReactionResult, error)
	dislike   func(ctx context.Context, id string) (*domain.ReactionResult, error)
	subscribe func(ctx context.Context, channelID string) (*domain.SubscriptionResult, error)

	mu    sync.Mutex
	calls map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: fallback.MustLoad(), calls: make(map[string]int)}
}

func (f *fakeRemote) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeRemote) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRemote) ListVideos(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	f.record("list")
	if f.list != nil {
		return f.list(ctx, filter)
	}
	return f.data.ListVideos(ctx, filter)
}

func (f *fakeRemote) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	f.record("get")
	if f.get != nil {
		return f.get(ctx, id)
	}
	return f.data.GetVideo(ctx, id)
}

func (f *fakeRemote) SearchVideos(ctx context.Context, query string, filter domain.Filter) (domain.Page, error) {
	f.record("search")
	return f.data.SearchVideos(ctx, query, filter)
}

func (f *fakeRemote) SubscriptionFeed(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	f.record("feed")
	return f.data.FeedFor(map[string]bool{"yrf": true}, filter), nil
}

func (f *fakeRemote) Like(ctx context.Context, id string) (*domain.ReactionResult, error) {
	f.record("like")
	if f.like != nil {
		return f.like(ctx, id)
	}
	return &domain.ReactionResult{IsLiked: true, LikeCount: 1}, nil
}

func (f *fakeRemote) Dislike(ctx context.Context, id string) (*domain.ReactionResult, error) {
	f.record("dislike")
	if f.dislike != nil {
		return f.dislike(ctx, id)
	}
	return &domain.ReactionResult{IsDisliked: true, DislikeCount: 1}, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, channelID string) (*domain.SubscriptionResult, error) {
	f.record("subscribe")
	if f.subscribe != nil {
		return f.subscribe(ctx, channelID)
	}
	return &domain.SubscriptionResult{IsSubscribed: true, SubscriberCount: 1}, nil
}

type viewer bool

func (v viewer) Authenticated() bool { return bool(v) }
func (v viewer) UserID() string      { return "viewer-1" }

type recordingNotifier struct {
	mu     sync.Mutex
	levels []domain.Level
}

func (n *recordingNotifier) Notify(level domain.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
}

func (n *recordingNotifier) has(level domain.Level) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.levels {
		if l == level {
			return true
		}
	}
	return false
}

func newOnlineStore(t *testing.T, remote *fakeRemote) (*Store, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	s := New(remote, fallback.MustLoad(), viewer(true), n, nil)
	t.Cleanup(func() { s.Close() })
	return s, n
}

func newOfflineStore(t *testing.T) *Store {
	t.Helper()
	s := New(nil, fallback.MustLoad(), viewer(true), nil, nil)
	t.Cleanup(func() { s.Close() })
	return s
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
