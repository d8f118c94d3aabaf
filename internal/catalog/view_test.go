package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcdole/reel/internal/domain"
)

func TestViewCloseCancelsLoad(t *testing.T) {
	remote := newFakeRemote()
	started := make(chan struct{})
	remote.get = func(ctx context.Context, id string) (*domain.Video, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s, n := newOnlineStore(t, remote)

	view := s.OpenView("5")
	errc := make(chan error, 1)
	go func() {
		_, err := view.Load(context.Background())
		errc <- err
	}()
	<-started
	view.Close()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Current() != nil {
		t.Error("abandoned load must not set current")
	}
	if !view.Closed() {
		t.Error("view should report closed")
	}
	if len(n.levels) != 0 {
		t.Errorf("abandoning a view is not worth a notification, got %v", n.levels)
	}
	waitFor(t, "slot release", func() bool { return !s.Loading(KindSingleVideo) })
}

func TestViewCloseStopsReconciliation(t *testing.T) {
	remote := newFakeRemote()
	started := make(chan struct{})
	remote.like = func(ctx context.Context, id string) (*domain.ReactionResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s, _ := newOnlineStore(t, remote)
	ctx := context.Background()

	view := s.OpenView("11")
	if _, err := view.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := view.Like(ctx)
		errc <- err
	}()
	<-started
	view.Close()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cur := s.Current(); !cur.Engagement.Reaction.IsLiked() {
		t.Error("an abandoned like must not be rolled back after the view closed")
	}

	if _, err := view.Dislike(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("closed view should refuse new work, got %v", err)
	}
	if got := remote.count("dislike"); got != 0 {
		t.Errorf("closed view reached the server %d times", got)
	}
}

func TestViewSubscribeUsesUploader(t *testing.T) {
	remote := newFakeRemote()
	var channel string
	remote.subscribe = func(ctx context.Context, channelID string) (*domain.SubscriptionResult, error) {
		channel = channelID
		return &domain.SubscriptionResult{IsSubscribed: true, SubscriberCount: 12000001}, nil
	}
	s, _ := newOnlineStore(t, remote)
	ctx := context.Background()

	view := s.OpenView("11")
	defer view.Close()
	view.Load(ctx)

	res, err := view.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if channel != "universal-music-india" || !res.IsSubscribed {
		t.Errorf("subscribed to %q: %+v", channel, res)
	}
	if cur := s.Current(); cur.Uploader.SubscriberCount != 12000001 || !cur.Engagement.Subscribed {
		t.Errorf("current not updated: %+v", cur.Uploader)
	}
}

func TestClosedViewFreesSlotForNextView(t *testing.T) {
	remote := newFakeRemote()
	started := make(chan struct{}, 1)
	remote.get = func(ctx context.Context, id string) (*domain.Video, error) {
		if id == "1" {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return remote.data.GetVideo(ctx, id)
	}
	s, _ := newOnlineStore(t, remote)
	ctx := context.Background()

	for i := range 50 {
		first := s.OpenView("1")
		errc := make(chan error, 1)
		go func() {
			_, err := first.Load(ctx)
			errc <- err
		}()
		<-started
		first.Close()

		next := s.OpenView("2")
		video, err := next.Load(ctx)
		if err != nil {
			t.Fatalf("navigation %d: next view Load: %v", i, err)
		}
		if video.ID != "2" || s.Current().ID != "2" {
			t.Fatalf("navigation %d: current = %q, want 2", i, s.Current().ID)
		}
		if err := <-errc; !errors.Is(err, context.Canceled) {
			t.Fatalf("navigation %d: abandoned load returned %v", i, err)
		}
		if s.Current().ID != "2" {
			t.Fatalf("navigation %d: abandoned load replaced current", i)
		}
		next.Close()
	}
}

func TestViewSubscribeAfterCurrentMoves(t *testing.T) {
	remote := newFakeRemote()
	var channel string
	remote.subscribe = func(ctx context.Context, channelID string) (*domain.SubscriptionResult, error) {
		channel = channelID
		return &domain.SubscriptionResult{IsSubscribed: true, SubscriberCount: 1}, nil
	}
	s, _ := newOnlineStore(t, remote)
	ctx := context.Background()

	view := s.OpenView("11")
	defer view.Close()
	if _, err := view.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.FetchVideo(ctx, "1"); err != nil {
		t.Fatalf("FetchVideo: %v", err)
	}

	if _, err := view.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if channel != "universal-music-india" {
		t.Errorf("subscribed to %q, want the viewed video's channel", channel)
	}
}
