package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/mmcdole/reel/internal/domain"
)

// View scopes store operations to one screen showing a single video.
// Closing the view cancels everything started through it, and nothing it
// cancelled will change the store afterwards.
type View struct {
	store   *Store
	videoID string
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	closed    bool
	loadToken uint64
	channelID string
}

// OpenView creates a view of videoID. The view also ends when the store
// closes.
func (s *Store) OpenView(videoID string) *View {
	ctx, cancel := context.WithCancel(s.ctx)
	return &View{
		store:   s,
		videoID: strings.TrimSpace(videoID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// VideoID returns the id of the viewed video
func (v *View) VideoID() string { return v.videoID }

// Load fetches the viewed video into the store's Current. Closing the view
// frees the single-video slot at once, so the next view can load without
// waiting for this fetch to unwind.
func (v *View) Load(ctx context.Context) (*domain.Video, error) {
	ctx, done := v.bind(ctx)
	defer done()
	video, err := v.store.fetchVideo(ctx, v.videoID, v.claim)
	v.mu.Lock()
	v.loadToken = 0
	if err == nil {
		v.channelID = video.Uploader.ID
	}
	v.mu.Unlock()
	return video, err
}

// claim records the slot held by Load, or gives it up if the view has
// already closed
func (v *View) claim(tok uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		v.store.guard.cancelToken(KindSingleVideo, tok)
		return
	}
	v.loadToken = tok
}

// Like likes the viewed video
func (v *View) Like(ctx context.Context) (*domain.ReactionResult, error) {
	ctx, done := v.bind(ctx)
	defer done()
	return v.store.Like(ctx, v.videoID)
}

// Dislike dislikes the viewed video
func (v *View) Dislike(ctx context.Context) (*domain.ReactionResult, error) {
	ctx, done := v.bind(ctx)
	defer done()
	return v.store.Dislike(ctx, v.videoID)
}

// Subscribe toggles the subscription to the viewed video's channel, as
// learned by Load
func (v *View) Subscribe(ctx context.Context) (*domain.SubscriptionResult, error) {
	v.mu.Lock()
	channelID := v.channelID
	v.mu.Unlock()
	if channelID == "" {
		if cur := v.store.Current(); cur != nil && cur.ID == v.videoID {
			channelID = cur.Uploader.ID
		}
	}
	ctx, done := v.bind(ctx)
	defer done()
	return v.store.Subscribe(ctx, channelID)
}

// Close cancels the view's in-flight operations and frees the slot of a
// running Load
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	tok := v.loadToken
	v.loadToken = 0
	v.mu.Unlock()

	v.cancel()
	if tok != 0 {
		v.store.guard.cancelToken(KindSingleVideo, tok)
	}
}

// Context returns a context that ends when the view closes
func (v *View) Context() context.Context { return v.ctx }

// Closed reports whether the view has been closed
func (v *View) Closed() bool { return v.ctx.Err() != nil }

// bind derives a context that also ends when the view closes
func (v *View) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if v.ctx.Err() != nil {
		cancel()
		return ctx, cancel
	}
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
