package catalog

// VideoDTO is a video as returned by the catalog API
type VideoDTO struct {
	ID                 string      `json:"_id"`
	Title              string      `json:"title"`
	VideoURL           string      `json:"videoUrl"`
	Thumbnail          string      `json:"thumbnail"`
	Duration           int         `json:"duration"`
	Views              int         `json:"views"`
	LikeCount          int         `json:"likeCount"`
	DislikeCount       int         `json:"dislikeCount"`
	Uploader           UploaderDTO `json:"uploader"`
	CreatedAt          string      `json:"createdAt"`
	Category           string      `json:"category"`
	Tags               []string    `json:"tags,omitempty"`
	IsLikedByUser      bool        `json:"isLikedByUser,omitempty"`
	IsDislikedByUser   bool        `json:"isDislikedByUser,omitempty"`
	IsSubscribedByUser bool        `json:"isSubscribedByUser,omitempty"`
}

// UploaderDTO is the embedded channel of a video
type UploaderDTO struct {
	ID              string `json:"_id"`
	Username        string `json:"username"`
	ChannelName     string `json:"channelName,omitempty"`
	ProfilePicture  string `json:"profilePicture,omitempty"`
	SubscriberCount int    `json:"subscriberCount"`
}

// VideoListResponse is the paginated list payload for /api/videos and the feed
type VideoListResponse struct {
	Videos []VideoDTO `json:"videos"`
	Total  int        `json:"total"`
	Page   int        `json:"page,omitempty"`
	Limit  int        `json:"limit,omitempty"`
}

// ReactionResponse is returned by the like and dislike endpoints
type ReactionResponse struct {
	IsLiked      bool `json:"isLiked"`
	LikeCount    int  `json:"likeCount"`
	IsDisliked   bool `json:"isDisliked"`
	DislikeCount int  `json:"dislikeCount"`
}

// SubscriptionResponse is returned by the subscribe endpoint
type SubscriptionResponse struct {
	IsSubscribed    bool `json:"isSubscribed"`
	SubscriberCount int  `json:"subscriberCount"`
}

// LoginRequest is the body of /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by /api/auth/login
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// UserDTO identifies a signed-in viewer
type UserDTO struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// ErrorResponse is the error body returned by the catalog API
type ErrorResponse struct {
	Error string `json:"error"`
}
