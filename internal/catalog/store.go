// Package catalog holds the client-side video catalog: the current video,
// the browse list, search results and the subscription feed, plus the
// viewer's optimistic engagement with them.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/reel/internal/domain"
)

// ErrClosed is returned by operations on a closed Store
var ErrClosed = errors.New("catalog store is closed")

// Remote is a catalog server: reads plus engagement mutations
type Remote interface {
	domain.CatalogClient
	domain.EngagementClient
}

// Fallback serves catalog reads from bundled data
type Fallback interface {
	domain.CatalogClient
	FeedFor(channels map[string]bool, filter domain.Filter) domain.Page
}

// Change identifies which part of the store was updated
type Change int

const (
	ChangeVideos Change = iota
	ChangeCurrent
	ChangeSearch
	ChangeFeed
	ChangeEngagement
)

// Store is the single owner of fetched catalog state. Reads go to the
// remote catalog, or to the fallback when the store is offline or the
// remote is unreachable. At most one fetch of each Kind runs at a time.
type Store struct {
	remote   Remote // nil when offline
	fallback Fallback
	viewer   domain.Viewer
	notifier domain.Notifier
	logger   *slog.Logger
	guard    *FetchGuard

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	degraded   bool // last remote read failed and fallback answered
	current    *domain.Video
	list       domain.Page
	listFilter domain.Filter
	results    domain.Page
	query      string
	feed       domain.Page

	// last known engagement per video and channel, authoritative offline
	reactions map[string]reactionState
	channels  map[string]channelState
	seq       map[string]uint64
	pending   map[string]bool

	listeners map[int]func(Change)
	nextID    int
}

// New creates a store. remote may be nil, in which case every read is
// served by fallback and engagement changes are kept locally.
func New(remote Remote, fallback Fallback, viewer domain.Viewer, notifier domain.Notifier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		remote:    remote,
		fallback:  fallback,
		viewer:    viewer,
		notifier:  notifier,
		logger:    logger,
		guard:     NewFetchGuard(),
		ctx:       ctx,
		cancel:    cancel,
		list:      domain.EmptyPage(),
		results:   domain.EmptyPage(),
		feed:      domain.EmptyPage(),
		reactions: make(map[string]reactionState),
		channels:  make(map[string]channelState),
		seq:       make(map[string]uint64),
		pending:   make(map[string]bool),
		listeners: make(map[int]func(Change)),
	}
}

// FetchVideos loads one page of the browse list
func (s *Store) FetchVideos(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	const op = "fetch videos"
	filter = filter.Normalize()

	ctx, tok, done, err := s.begin(ctx, KindVideos)
	if err != nil {
		s.report(op, err)
		return domain.EmptyPage(), err
	}
	defer done()

	page, local, err := fetch(s, ctx, op, s.fallbackClient(), func(c domain.CatalogClient) (domain.Page, error) {
		return c.ListVideos(ctx, filter)
	})
	if err != nil {
		s.report(op, err)
		return domain.EmptyPage(), err
	}

	if !s.guard.commit(ctx, KindVideos, tok, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mergeLocked(page.Videos, local)
		s.list = clonePage(page)
		s.listFilter = filter
	}) {
		return domain.EmptyPage(), s.abandoned(ctx)
	}
	s.publish(ChangeVideos)
	return page, nil
}

// FetchVideo loads a single video into Current
func (s *Store) FetchVideo(ctx context.Context, id string) (*domain.Video, error) {
	return s.fetchVideo(ctx, id, nil)
}

// fetchVideo is FetchVideo with a hook that learns the guard token once
// the slot is claimed
func (s *Store) fetchVideo(ctx context.Context, id string, claimed func(tok uint64)) (*domain.Video, error) {
	const op = "fetch video"
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	ctx, tok, done, err := s.begin(ctx, KindSingleVideo)
	if err != nil {
		s.report(op, err)
		return nil, err
	}
	defer done()
	if claimed != nil {
		claimed(tok)
	}

	video, local, err := fetch(s, ctx, op, s.fallbackClient(), func(c domain.CatalogClient) (*domain.Video, error) {
		return c.GetVideo(ctx, id)
	})
	if err != nil {
		s.report(op, err)
		return nil, err
	}
	if video == nil {
		return nil, domain.ErrNotFound
	}

	if !s.guard.commit(ctx, KindSingleVideo, tok, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		videos := []domain.Video{*video}
		s.mergeLocked(videos, local)
		held := videos[0].Clone()
		s.current = &held
		*video = videos[0]
	}) {
		return nil, s.abandoned(ctx)
	}
	s.publish(ChangeCurrent)
	return video, nil
}

// SearchVideos loads one page of title matches for query. An empty query
// yields an empty page without contacting the catalog.
func (s *Store) SearchVideos(ctx context.Context, query string, filter domain.Filter) (domain.Page, error) {
	const op = "search videos"
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.EmptyPage(), nil
	}
	filter = filter.Normalize()

	ctx, tok, done, err := s.begin(ctx, KindSearch)
	if err != nil {
		s.report(op, err)
		return domain.EmptyPage(), err
	}
	defer done()

	page, local, err := fetch(s, ctx, op, s.fallbackClient(), func(c domain.CatalogClient) (domain.Page, error) {
		return c.SearchVideos(ctx, query, filter)
	})
	if err != nil {
		s.report(op, err)
		return domain.EmptyPage(), err
	}

	if !s.guard.commit(ctx, KindSearch, tok, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mergeLocked(page.Videos, local)
		s.results = clonePage(page)
		s.query = query
	}) {
		return domain.EmptyPage(), s.abandoned(ctx)
	}
	s.publish(ChangeSearch)
	return page, nil
}

// FetchSubscriptionFeed loads videos from channels the viewer follows.
// Anonymous viewers get an empty feed.
func (s *Store) FetchSubscriptionFeed(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	const op = "fetch subscriptions"
	if !s.authenticated() {
		return domain.EmptyPage(), nil
	}
	filter = filter.Normalize()

	ctx, tok, done, err := s.begin(ctx, KindSubscriptionFeed)
	if err != nil {
		s.report(op, err)
		return domain.EmptyPage(), err
	}
	defer done()

	var local domain.CatalogClient
	if s.fallback != nil {
		s.mu.Lock()
		local = feedScope{Fallback: s.fallback, channels: s.subscribedLocked()}
		s.mu.Unlock()
	}

	page, fromLocal, err := fetch(s, ctx, op, local, func(c domain.CatalogClient) (domain.Page, error) {
		return c.SubscriptionFeed(ctx, filter)
	})
	if err != nil {
		s.report(op, err)
		return domain.EmptyPage(), err
	}

	if !s.guard.commit(ctx, KindSubscriptionFeed, tok, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mergeLocked(page.Videos, fromLocal)
		s.feed = clonePage(page)
	}) {
		return domain.EmptyPage(), s.abandoned(ctx)
	}
	s.publish(ChangeFeed)
	return page, nil
}

// Current returns a copy of the video loaded by FetchVideo, or nil
func (s *Store) Current() *domain.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	v := s.current.Clone()
	return &v
}

// Videos returns the browse list and the filter it was fetched with
func (s *Store) Videos() (domain.Page, domain.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePage(s.list), s.listFilter
}

// SearchResults returns the last search query and its results
func (s *Store) SearchResults() (string, domain.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query, clonePage(s.results)
}

// Feed returns the subscription feed
func (s *Store) Feed() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePage(s.feed)
}

// Offline reports whether the store has no remote catalog
func (s *Store) Offline() bool { return s.remote == nil }

// Degraded reports whether the last remote read fell back to bundled data
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Loading reports whether a fetch of kind is in flight
func (s *Store) Loading(kind Kind) bool { return s.guard.InFlight(kind) }

// CancelFetch aborts the in-flight fetch of kind, if any. Its result is
// discarded and the slot is free for the next fetch.
func (s *Store) CancelFetch(kind Kind) { s.guard.cancel(kind) }

// Watch registers fn to be called after every change. fn runs on the
// goroutine that made the change, outside the store lock. The returned
// function unregisters it.
func (s *Store) Watch(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close cancels every in-flight operation. Later operations fail with
// ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clear(s.listeners)
	s.mu.Unlock()

	s.guard.cancelAll()
	s.cancel()
	s.logger.Debug("catalog store closed")
	return nil
}

// begin claims the fetch slot for kind and derives a context that ends
// when the caller's does, the slot is cancelled, or the store closes.
func (s *Store) begin(ctx context.Context, kind Kind) (context.Context, uint64, func(), error) {
	if s.isClosed() {
		return nil, 0, nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	tok, ok := s.guard.acquire(kind, cancel)
	if !ok {
		stop()
		cancel()
		return nil, 0, nil, domain.ErrFetchInProgress
	}
	return ctx, tok, func() {
		s.guard.release(kind, tok)
		stop()
		cancel()
	}, nil
}

// fetch runs call against the remote catalog, or against local when the
// store is offline or the remote cannot be reached. It reports whether the
// local data answered.
func fetch[T any](s *Store, ctx context.Context, op string, local domain.CatalogClient, call func(domain.CatalogClient) (T, error)) (T, bool, error) {
	var zero T
	if s.remote == nil {
		if local == nil {
			return zero, false, domain.ErrNetworkFailure
		}
		v, err := call(local)
		return v, true, err
	}

	v, err := call(s.remote)
	if err == nil {
		s.setDegraded(false)
		return v, false, nil
	}
	if !errors.Is(err, domain.ErrNetworkFailure) || local == nil || ctx.Err() != nil {
		return zero, false, err
	}

	s.logger.Warn("catalog unreachable, serving bundled data", "op", op, "error", err)
	if s.setDegraded(true) {
		s.notifier.Notify(domain.LevelWarning, "Catalog unreachable, showing offline videos")
	}
	v, err = call(local)
	return v, true, err
}

func (s *Store) fallbackClient() domain.CatalogClient {
	if s.fallback == nil {
		return nil
	}
	return s.fallback
}

// feedScope answers SubscriptionFeed from bundled data for a fixed set of
// channels
type feedScope struct {
	Fallback
	channels map[string]bool
}

func (f feedScope) SubscriptionFeed(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	return f.FeedFor(f.channels, filter), nil
}

// setDegraded records fallback use and reports whether it changed
func (s *Store) setDegraded(on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.degraded != on
	s.degraded = on
	return changed
}

// mergeLocked reconciles fetched videos with known engagement. Bundled
// data carries no viewer state, so local knowledge is applied to it.
// Remote data is authoritative except for targets with a mutation in
// flight.
func (s *Store) mergeLocked(videos []domain.Video, local bool) {
	for i := range videos {
		v := &videos[i]
		if local || s.pending[videoKey(v.ID)] {
			if r, ok := s.reactions[v.ID]; ok {
				r.applyTo(v)
			}
		} else {
			s.reactions[v.ID] = reactionOf(*v)
		}
		if local || s.pending[channelKey(v.Uploader.ID)] {
			if c, ok := s.channels[v.Uploader.ID]; ok {
				c.applyTo(v)
			}
		} else if v.Uploader.ID != "" {
			s.channels[v.Uploader.ID] = channelOf(*v)
		}
	}
}

// eachHeldLocked visits every video copy the store holds
func (s *Store) eachHeldLocked(fn func(v *domain.Video)) {
	if s.current != nil {
		fn(s.current)
	}
	for _, page := range []*domain.Page{&s.list, &s.results, &s.feed} {
		for i := range page.Videos {
			fn(&page.Videos[i])
		}
	}
}

func (s *Store) subscribedLocked() map[string]bool {
	out := make(map[string]bool)
	for id, c := range s.channels {
		if c.subscribed {
			out[id] = true
		}
	}
	return out
}

func (s *Store) authenticated() bool {
	return s.viewer != nil && s.viewer.Authenticated()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) abandoned(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

func (s *Store) publish(change Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

// report logs err and tells the viewer about it when it matters to them
func (s *Store) report(op string, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrClosed):
		s.logger.Debug("catalog operation abandoned", "op", op, "error", err)
	case errors.Is(err, domain.ErrFetchInProgress):
		s.logger.Debug("fetch already in flight", "op", op)
	case errors.Is(err, domain.ErrRateLimited):
		s.logger.Warn("catalog rate limited", "op", op)
		s.notifier.Notify(domain.LevelWarning, "Too many requests, try again in a moment")
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Info("catalog item not found", "op", op)
	case errors.Is(err, domain.ErrAuthFailed):
		s.logger.Warn("catalog rejected credentials", "op", op, "error", err)
		s.notifier.Notify(domain.LevelError, "Session expired, run 'reel login' to sign in again")
	case errors.Is(err, domain.ErrNetworkFailure):
		s.logger.Warn("catalog unreachable", "op", op, "error", err)
		s.notifier.Notify(domain.LevelWarning, "Catalog unreachable")
	default:
		s.logger.Error("catalog operation failed", "op", op, "error", err)
		s.notifier.Notify(domain.LevelError, "Failed to "+op)
	}
}

func clonePage(p domain.Page) domain.Page {
	out := p
	out.Videos = make([]domain.Video, len(p.Videos))
	for i, v := range p.Videos {
		out.Videos[i] = v.Clone()
	}
	return out
}
