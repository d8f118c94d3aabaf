package catalog

import (
	"time"

	"github.com/mmcdole/reel/internal/domain"
)

// MapVideo converts an API video into a domain video
func MapVideo(dto VideoDTO) domain.Video {
	v := domain.Video{
		ID:           dto.ID,
		Title:        dto.Title,
		MediaURL:     dto.VideoURL,
		ThumbnailURL: dto.Thumbnail,
		Duration:     max(dto.Duration, 0),
		Views:        max(dto.Views, 0),
		LikeCount:    max(dto.LikeCount, 0),
		DislikeCount: max(dto.DislikeCount, 0),
		Uploader: domain.Uploader{
			ID:              dto.Uploader.ID,
			Username:        dto.Uploader.Username,
			ChannelName:     dto.Uploader.ChannelName,
			SubscriberCount: max(dto.Uploader.SubscriberCount, 0),
		},
		CreatedAt: parseTime(dto.CreatedAt),
		Category:  dto.Category,
		Tags:      dto.Tags,
		Engagement: domain.Engagement{
			Reaction:   domain.ReactionFromFlags(dto.IsLikedByUser, dto.IsDislikedByUser, domain.ReactionNeutral),
			Subscribed: dto.IsSubscribedByUser,
		},
	}
	return v
}

// MapVideos converts a slice of API videos, never returning nil
func MapVideos(dtos []VideoDTO) []domain.Video {
	videos := make([]domain.Video, 0, len(dtos))
	for _, dto := range dtos {
		videos = append(videos, MapVideo(dto))
	}
	return videos
}

// MapPage converts a list response into a domain page
func MapPage(resp VideoListResponse, filter domain.Filter) domain.Page {
	page := domain.Page{
		Videos: MapVideos(resp.Videos),
		Total:  resp.Total,
		Page:   resp.Page,
		Limit:  resp.Limit,
	}
	if page.Page == 0 {
		page.Page = filter.Page
	}
	if page.Limit == 0 {
		page.Limit = filter.Limit
	}
	if page.Total < len(page.Videos) {
		page.Total = len(page.Videos)
	}
	return page
}

// MapReaction converts a like/dislike response
func MapReaction(resp ReactionResponse) *domain.ReactionResult {
	return &domain.ReactionResult{
		IsLiked:      resp.IsLiked,
		LikeCount:    max(resp.LikeCount, 0),
		IsDisliked:   resp.IsDisliked,
		DislikeCount: max(resp.DislikeCount, 0),
	}
}

// MapSubscription converts a subscribe response
func MapSubscription(resp SubscriptionResponse) *domain.SubscriptionResult {
	return &domain.SubscriptionResult{
		IsSubscribed:    resp.IsSubscribed,
		SubscriberCount: max(resp.SubscriberCount, 0),
	}
}

// DTOFromVideo converts a domain video into its API form
func DTOFromVideo(v domain.Video) VideoDTO {
	return VideoDTO{
		ID:           v.ID,
		Title:        v.Title,
		VideoURL:     v.MediaURL,
		Thumbnail:    v.ThumbnailURL,
		Duration:     v.Duration,
		Views:        v.Views,
		LikeCount:    v.LikeCount,
		DislikeCount: v.DislikeCount,
		Uploader: UploaderDTO{
			ID:              v.Uploader.ID,
			Username:        v.Uploader.Username,
			ChannelName:     v.Uploader.ChannelName,
			SubscriberCount: v.Uploader.SubscriberCount,
		},
		CreatedAt:          v.CreatedAt.UTC().Format(time.RFC3339),
		Category:           v.Category,
		Tags:               v.Tags,
		IsLikedByUser:      v.Engagement.Reaction.IsLiked(),
		IsDislikedByUser:   v.Engagement.Reaction.IsDisliked(),
		IsSubscribedByUser: v.Engagement.Subscribed,
	}
}

// parseTime parses an RFC 3339 timestamp, returning zero time when unparseable
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
