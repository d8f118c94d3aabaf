package devserver

import (
	"sync"

	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/domain"
)

// state holds the server-side catalog: the bundled videos plus every
// viewer's reactions and subscriptions, kept in memory.
type state struct {
	data *fallback.Dataset

	mu          sync.Mutex
	likes       map[string]int // by video
	dislikes    map[string]int
	subscribers map[string]int // by channel
	reactions   map[string]map[string]domain.Reaction
	follows     map[string]map[string]bool
}

func newState(data *fallback.Dataset) *state {
	s := &state{
		data:        data,
		likes:       make(map[string]int),
		dislikes:    make(map[string]int),
		subscribers: make(map[string]int),
		reactions:   make(map[string]map[string]domain.Reaction),
		follows:     make(map[string]map[string]bool),
	}
	for _, v := range data.All() {
		s.likes[v.ID] = v.LikeCount
		s.dislikes[v.ID] = v.DislikeCount
		s.subscribers[v.Uploader.ID] = v.Uploader.SubscriberCount
	}
	return s
}

// decorateLocked applies live counts and userID's engagement to v
func (s *state) decorateLocked(userID string, v *domain.Video) {
	v.LikeCount = s.likes[v.ID]
	v.DislikeCount = s.dislikes[v.ID]
	v.Uploader.SubscriberCount = s.subscribers[v.Uploader.ID]
	v.Engagement = domain.Engagement{}
	if userID == "" {
		return
	}
	v.Engagement.Reaction = s.reactions[userID][v.ID]
	v.Engagement.Subscribed = s.follows[userID][v.Uploader.ID]
}

func (s *state) decoratePage(userID string, page domain.Page) domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range page.Videos {
		s.decorateLocked(userID, &page.Videos[i])
	}
	return page
}

func (s *state) list(userID string, filter domain.Filter) domain.Page {
	return s.decoratePage(userID, s.data.Query(filter, nil))
}

func (s *state) video(userID, id string) (*domain.Video, bool) {
	v, ok := s.data.Find(id)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decorateLocked(userID, v)
	return v, true
}

func (s *state) feed(userID string, filter domain.Filter) domain.Page {
	s.mu.Lock()
	channels := make(map[string]bool, len(s.follows[userID]))
	for id, on := range s.follows[userID] {
		channels[id] = on
	}
	s.mu.Unlock()
	return s.decoratePage(userID, s.data.FeedFor(channels, filter))
}

// react sets userID's reaction to videoID. Choosing the current reaction
// again leaves it in place.
func (s *state) react(userID, videoID string, want domain.Reaction) (domain.ReactionResult, bool) {
	if _, ok := s.data.Find(videoID); !ok {
		return domain.ReactionResult{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mine := s.reactions[userID]
	if mine == nil {
		mine = make(map[string]domain.Reaction)
		s.reactions[userID] = mine
	}

	if prev := mine[videoID]; prev != want {
		switch prev {
		case domain.ReactionLiked:
			s.likes[videoID] = max(s.likes[videoID]-1, 0)
		case domain.ReactionDisliked:
			s.dislikes[videoID] = max(s.dislikes[videoID]-1, 0)
		}
		switch want {
		case domain.ReactionLiked:
			s.likes[videoID]++
		case domain.ReactionDisliked:
			s.dislikes[videoID]++
		}
		mine[videoID] = want
	}

	return domain.ReactionResult{
		IsLiked:      want.IsLiked(),
		LikeCount:    s.likes[videoID],
		IsDisliked:   want.IsDisliked(),
		DislikeCount: s.dislikes[videoID],
	}, true
}

// toggleSubscription flips userID's subscription to channelID
func (s *state) toggleSubscription(userID, channelID string) (domain.SubscriptionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[channelID]; !ok {
		return domain.SubscriptionResult{}, false
	}
	mine := s.follows[userID]
	if mine == nil {
		mine = make(map[string]bool)
		s.follows[userID] = mine
	}

	if mine[channelID] {
		delete(mine, channelID)
		s.subscribers[channelID] = max(s.subscribers[channelID]-1, 0)
	} else {
		mine[channelID] = true
		s.subscribers[channelID]++
	}
	return domain.SubscriptionResult{
		IsSubscribed:    mine[channelID],
		SubscriberCount: s.subscribers[channelID],
	}, true
}
