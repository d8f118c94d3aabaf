package domain

import (
	"fmt"
	"time"
)

// Uploader is the channel that published a video
type Uploader struct {
	ID              string // Channel identifier
	Username        string // Account handle
	ChannelName     string // Display name (falls back to Username)
	SubscriberCount int    // Aggregate subscriber count
}

// DisplayName returns the channel name, or the username when unset
func (u Uploader) DisplayName() string {
	if u.ChannelName != "" {
		return u.ChannelName
	}
	return u.Username
}

// Reaction is the viewer's like/dislike state for a video.
// A single value keeps liked and disliked mutually exclusive.
type Reaction int

const (
	ReactionNeutral Reaction = iota
	ReactionLiked
	ReactionDisliked
)

// IsLiked reports whether the viewer likes the video
func (r Reaction) IsLiked() bool { return r == ReactionLiked }

// IsDisliked reports whether the viewer dislikes the video
func (r Reaction) IsDisliked() bool { return r == ReactionDisliked }

// String returns a human-readable representation of the reaction
func (r Reaction) String() string {
	switch r {
	case ReactionLiked:
		return "Liked"
	case ReactionDisliked:
		return "Disliked"
	default:
		return "Neutral"
	}
}

// ReactionFromFlags builds a Reaction from the two wire booleans.
// prefer breaks the tie when a malformed payload sets both.
func ReactionFromFlags(liked, disliked bool, prefer Reaction) Reaction {
	switch {
	case liked && disliked:
		return prefer
	case liked:
		return ReactionLiked
	case disliked:
		return ReactionDisliked
	default:
		return ReactionNeutral
	}
}

// Engagement is the viewer-relative state attached to a video
type Engagement struct {
	Reaction   Reaction
	Subscribed bool // Viewer follows the uploader
}

// Video is a catalog entry merged with the viewer's engagement state
type Video struct {
	ID           string
	Title        string
	MediaURL     string
	ThumbnailURL string
	Duration     int // Seconds
	Views        int
	LikeCount    int
	DislikeCount int
	Uploader     Uploader
	CreatedAt    time.Time
	Category     string
	Tags         []string

	Engagement Engagement
}

// Clone returns a deep copy so held state never aliases caller state
func (v Video) Clone() Video {
	if v.Tags != nil {
		tags := make([]string, len(v.Tags))
		copy(tags, v.Tags)
		v.Tags = tags
	}
	return v
}

// FormattedDuration returns the duration as h:mm:ss or m:ss
func (v Video) FormattedDuration() string {
	return FormatSeconds(float64(v.Duration))
}

// FormattedViews returns the view count in a compact form (e.g., "1.2M views")
func (v Video) FormattedViews() string {
	switch {
	case v.Views >= 1_000_000:
		return fmt.Sprintf("%.1fM views", float64(v.Views)/1_000_000)
	case v.Views >= 1_000:
		return fmt.Sprintf("%.1fK views", float64(v.Views)/1_000)
	default:
		return fmt.Sprintf("%d views", v.Views)
	}
}

// FormatSeconds renders a position in seconds as h:mm:ss or m:ss
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ReactionResult is returned by like/dislike operations
type ReactionResult struct {
	IsLiked      bool
	LikeCount    int
	IsDisliked   bool
	DislikeCount int
}

// Reaction returns the tagged form of the result
func (r ReactionResult) Reaction() Reaction {
	return ReactionFromFlags(r.IsLiked, r.IsDisliked, ReactionNeutral)
}

// SubscriptionResult is returned by subscribe operations
type SubscriptionResult struct {
	IsSubscribed    bool
	SubscriberCount int
}

// Page is one page of videos plus the total number of matches
type Page struct {
	Videos []Video
	Total  int
	Page   int
	Limit  int
}

// EmptyPage returns a well-formed page with no videos
func EmptyPage() Page {
	return Page{Videos: []Video{}}
}
