package tui

import (
	"github.com/mmcdole/reel/internal/domain"
)

// Message types for the TUI

// PageLoadedMsg signals that a tab's fetch finished. The page itself is
// read back from the catalog store.
type PageLoadedMsg struct {
	Tab Tab
	Err error
}

// VideoOpenedMsg signals that the watched video was fetched
type VideoOpenedMsg struct {
	VideoID string
	Video   *domain.Video
	Err     error
}

// MediaLoadedMsg signals that the player finished loading the media
type MediaLoadedMsg struct {
	VideoID string
	Err     error
}

// EngagementMsg signals that a like, dislike or subscribe settled
type EngagementMsg struct {
	Action string
	Err    error
}

// PlayerErrMsg carries a failed player command
type PlayerErrMsg struct {
	Action string
	Err    error
}

// TickMsg drives periodic redraws of player and toast state
type TickMsg struct{}
