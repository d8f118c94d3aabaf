// Package fallback serves the bundled static catalog used when the network
// layer is disabled or unreachable.
package fallback

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/search"
)

//go:embed videos.json
var bundled []byte

// record mirrors the catalog API's video payload
type record struct {
	ID           string   `json:"_id"`
	Title        string   `json:"title"`
	VideoURL     string   `json:"videoUrl"`
	Thumbnail    string   `json:"thumbnail"`
	Duration     int      `json:"duration"`
	Views        int      `json:"views"`
	LikeCount    int      `json:"likeCount"`
	DislikeCount int      `json:"dislikeCount"`
	Uploader     uploader `json:"uploader"`
	CreatedAt    string   `json:"createdAt"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
}

type uploader struct {
	ID              string `json:"_id"`
	Username        string `json:"username"`
	ChannelName     string `json:"channelName"`
	SubscriberCount int    `json:"subscriberCount"`
}

// Dataset is an immutable in-memory catalog. It implements domain.CatalogClient
// with the same filter and search semantics as the catalog server.
type Dataset struct {
	videos []domain.Video
	byID   map[string]int
}

// Load parses the bundled dataset
func Load() (*Dataset, error) {
	return Parse(bundled)
}

// MustLoad parses the bundled dataset and panics on failure.
// The bundle is compiled in, so failure is a build defect.
func MustLoad() *Dataset {
	ds, err := Load()
	if err != nil {
		panic(err)
	}
	return ds
}

// Parse builds a dataset from a JSON array of catalog records
func Parse(data []byte) (*Dataset, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse fallback dataset: %w", err)
	}

	ds := &Dataset{
		videos: make([]domain.Video, 0, len(records)),
		byID:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := ds.byID[r.ID]; dup {
			continue
		}
		ds.byID[r.ID] = len(ds.videos)
		ds.videos = append(ds.videos, mapRecord(r))
	}
	return ds, nil
}

func mapRecord(r record) domain.Video {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Video{
		ID:           r.ID,
		Title:        r.Title,
		MediaURL:     r.VideoURL,
		ThumbnailURL: r.Thumbnail,
		Duration:     max(r.Duration, 0),
		Views:        max(r.Views, 0),
		LikeCount:    max(r.LikeCount, 0),
		DislikeCount: max(r.DislikeCount, 0),
		Uploader: domain.Uploader{
			ID:              r.Uploader.ID,
			Username:        r.Uploader.Username,
			ChannelName:     r.Uploader.ChannelName,
			SubscriberCount: max(r.Uploader.SubscriberCount, 0),
		},
		CreatedAt: created,
		Category:  r.Category,
		Tags:      r.Tags,
	}
}

// Len returns the number of videos in the dataset
func (d *Dataset) Len() int { return len(d.videos) }

// All returns copies of every video in dataset order
func (d *Dataset) All() []domain.Video {
	out := make([]domain.Video, len(d.videos))
	for i, v := range d.videos {
		out[i] = v.Clone()
	}
	return out
}

// Find returns a copy of the video with the given id
func (d *Dataset) Find(id string) (*domain.Video, bool) {
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	v := d.videos[i].Clone()
	return &v, true
}

// Query filters, orders, and pages the dataset. keep may be nil.
func (d *Dataset) Query(filter domain.Filter, keep func(domain.Video) bool) domain.Page {
	filter = filter.Normalize()

	var matched []domain.Video
	for _, v := range d.videos {
		if filter.Category != "" && v.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !search.ContainsFold(v.Title, filter.Search) {
			continue
		}
		if keep != nil && !keep(v) {
			continue
		}
		matched = append(matched, v.Clone())
	}

	matched = Order(matched, filter)
	return Paginate(matched, filter)
}

// Order sorts videos for the filter's SortBy
func Order(videos []domain.Video, filter domain.Filter) []domain.Video {
	switch filter.SortBy {
	case domain.SortViews:
		sort.SliceStable(videos, func(i, j int) bool { return videos[i].Views > videos[j].Views })
	case domain.SortRecency:
		sort.SliceStable(videos, func(i, j int) bool { return videos[i].CreatedAt.After(videos[j].CreatedAt) })
	default:
		videos = search.Rank(filter.Search, videos)
	}
	return videos
}

// Paginate slices an ordered result set into the filter's page
func Paginate(videos []domain.Video, filter domain.Filter) domain.Page {
	page := domain.Page{
		Videos: []domain.Video{},
		Total:  len(videos),
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	start := filter.Offset()
	if start >= len(videos) {
		return page
	}
	end := min(start+filter.Limit, len(videos))
	page.Videos = append(page.Videos, videos[start:end]...)
	return page
}

// ListVideos implements domain.CatalogClient
func (d *Dataset) ListVideos(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	return d.Query(filter, nil), nil
}

// GetVideo implements domain.CatalogClient
func (d *Dataset) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	v, ok := d.Find(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

// SearchVideos implements domain.CatalogClient
func (d *Dataset) SearchVideos(ctx context.Context, query string, filter domain.Filter) (domain.Page, error) {
	filter.Search = query
	filter = filter.Normalize()
	if filter.Search == "" {
		return domain.EmptyPage(), nil
	}
	return d.Query(filter, nil), nil
}

// SubscriptionFeed implements domain.CatalogClient. The dataset has no
// viewer, so the feed is scoped by FeedFor instead.
func (d *Dataset) SubscriptionFeed(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	return domain.EmptyPage(), nil
}

// FeedFor returns videos from the given channels. Without a search term
// the feed is ordered most recent first.
func (d *Dataset) FeedFor(channels map[string]bool, filter domain.Filter) domain.Page {
	if len(channels) == 0 {
		return domain.EmptyPage()
	}
	filter = filter.Normalize()
	if filter.Search == "" && filter.SortBy == domain.SortRelevance {
		filter.SortBy = domain.SortRecency
	}
	return d.Query(filter, func(v domain.Video) bool { return channels[v.Uploader.ID] })
}
