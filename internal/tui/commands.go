package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/player"
)

// Command factories for async operations

const (
	fetchTimeout = 30 * time.Second
	loadTimeout  = time.Minute
)

// FetchTabCmd loads the page shown on tab into the store
func FetchTabCmd(store *catalog.Store, tab Tab, filter domain.Filter, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		var err error
		switch tab {
		case TabHome:
			_, err = store.FetchVideos(ctx, filter)
		case TabSearch:
			_, err = store.SearchVideos(ctx, query, filter)
		case TabSubscriptions:
			_, err = store.FetchSubscriptionFeed(ctx, filter)
		}
		return PageLoadedMsg{Tab: tab, Err: err}
	}
}

// OpenVideoCmd fetches the video behind view with the viewer's engagement
func OpenVideoCmd(view *catalog.View) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		v, err := view.Load(ctx)
		return VideoOpenedMsg{VideoID: view.VideoID(), Video: v, Err: err}
	}
}

// LoadMediaCmd loads url into the player and waits until it is ready.
// The load is abandoned when view closes.
func LoadMediaCmd(ctrl *player.Controller, view *catalog.View, videoID, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(view.Context(), loadTimeout)
		defer cancel()
		return MediaLoadedMsg{VideoID: videoID, Err: ctrl.Load(ctx, url)}
	}
}

// EngageCmd runs a like, dislike or subscribe through the open view
func EngageCmd(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return EngagementMsg{Action: action, Err: fn(ctx)}
	}
}

// PlayerCmd runs a player command off the UI goroutine
func PlayerCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return PlayerErrMsg{Action: action, Err: err}
		}
		return nil
	}
}

// TickCmd returns a command that sends a tick after delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}
