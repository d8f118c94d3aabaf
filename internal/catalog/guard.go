package catalog

import (
	"context"
	"sync"
)

// Kind names a family of fetches that share one in-flight slot
type Kind string

const (
	KindVideos           Kind = "videos"
	KindSingleVideo      Kind = "singleVideo"
	KindSearch           Kind = "search"
	KindSubscriptionFeed Kind = "subscriptionFeed"
)

type flight struct {
	token  uint64
	cancel context.CancelFunc
}

// FetchGuard admits at most one in-flight fetch per Kind. A fetch holds a
// token from acquire until release; its result may only be committed while
// that token is still the current one for its kind.
type FetchGuard struct {
	mu       sync.Mutex
	next     uint64
	inflight map[Kind]flight
}

// NewFetchGuard creates an idle guard
func NewFetchGuard() *FetchGuard {
	return &FetchGuard{inflight: make(map[Kind]flight)}
}

// InFlight reports whether a fetch of kind is running
func (g *FetchGuard) InFlight(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[kind]
	return ok
}

// acquire claims the slot for kind. It fails if the slot is taken.
func (g *FetchGuard) acquire(kind Kind, cancel context.CancelFunc) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[kind]; busy {
		return 0, false
	}
	g.next++
	g.inflight[kind] = flight{token: g.next, cancel: cancel}
	return g.next, true
}

// release frees the slot if tok still owns it
func (g *FetchGuard) release(kind Kind, tok uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok := g.inflight[kind]; ok && f.token == tok {
		delete(g.inflight, kind)
	}
}

// cancel aborts the fetch of kind and frees its slot. The aborted fetch
// can no longer commit.
func (g *FetchGuard) cancel(kind Kind) {
	g.mu.Lock()
	f, ok := g.inflight[kind]
	delete(g.inflight, kind)
	g.mu.Unlock()
	if ok {
		f.cancel()
	}
}

// cancelToken aborts the fetch of kind and frees its slot if tok still
// owns it
func (g *FetchGuard) cancelToken(kind Kind, tok uint64) {
	g.mu.Lock()
	f, ok := g.inflight[kind]
	ok = ok && f.token == tok
	if ok {
		delete(g.inflight, kind)
	}
	g.mu.Unlock()
	if ok {
		f.cancel()
	}
}

// cancelAll aborts every running fetch
func (g *FetchGuard) cancelAll() {
	g.mu.Lock()
	flights := g.inflight
	g.inflight = make(map[Kind]flight)
	g.mu.Unlock()
	for _, f := range flights {
		f.cancel()
	}
}

// commit runs fn if tok still owns the slot for kind and ctx is live.
// fn runs under the guard lock so a concurrent cancel cannot interleave.
func (g *FetchGuard) commit(ctx context.Context, kind Kind, tok uint64, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.inflight[kind]
	if !ok || f.token != tok || ctx.Err() != nil {
		return false
	}
	fn()
	return true
}
