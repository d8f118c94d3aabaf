package domain

import "context"

// CatalogClient provides network access to the video catalog.
// Implemented by the HTTP source client and by the bundled fallback dataset.
type CatalogClient interface {
	// ListVideos returns one page of videos matching filter
	ListVideos(ctx context.Context, filter Filter) (Page, error)

	// GetVideo returns a single video with the viewer's engagement merged in
	GetVideo(ctx context.Context, id string) (*Video, error)

	// SearchVideos returns one page of videos whose titles match query
	SearchVideos(ctx context.Context, query string, filter Filter) (Page, error)

	// SubscriptionFeed returns videos from channels the viewer follows
	SubscriptionFeed(ctx context.Context, filter Filter) (Page, error)
}

// EngagementClient provides server-authoritative engagement mutations
type EngagementClient interface {
	Like(ctx context.Context, videoID string) (*ReactionResult, error)
	Dislike(ctx context.Context, videoID string) (*ReactionResult, error)
	Subscribe(ctx context.Context, channelID string) (*SubscriptionResult, error)
}

// Viewer exposes the signed-in identity to the core
type Viewer interface {
	Authenticated() bool
	UserID() string
}

// Level classifies a notification
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// String returns the lowercase level name
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier receives user-facing notifications from the core
type Notifier interface {
	Notify(level Level, message string)
}

// NotifyFunc adapts a function to Notifier
type NotifyFunc func(level Level, message string)

// Notify calls f(level, message)
func (f NotifyFunc) Notify(level Level, message string) { f(level, message) }

// NopNotifier discards notifications
type NopNotifier struct{}

func (NopNotifier) Notify(Level, string) {}

// AuthResult contains the result of a successful sign-in
type AuthResult struct {
	Token    string // Bearer token for API calls
	UserID   string // Viewer identifier
	Username string // Display username
}

// AuthFlow signs a viewer in against a catalog server
type AuthFlow interface {
	Run(ctx context.Context, serverURL string) (*AuthResult, error)
}
