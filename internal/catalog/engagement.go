package catalog

import (
	"context"
	"strings"

	"github.com/mmcdole/reel/internal/domain"
)

type reactionState struct {
	reaction domain.Reaction
	likes    int
	dislikes int
}

func reactionOf(v domain.Video) reactionState {
	return reactionState{reaction: v.Engagement.Reaction, likes: v.LikeCount, dislikes: v.DislikeCount}
}

func (r reactionState) applyTo(v *domain.Video) {
	v.Engagement.Reaction = r.reaction
	v.LikeCount = r.likes
	v.DislikeCount = r.dislikes
}

// choose moves to want, undoing the previous reaction's count. Liked and
// Disliked are exclusive, so switching sides adjusts both counts.
func (r reactionState) choose(want domain.Reaction) reactionState {
	if r.reaction == want {
		return r
	}
	switch r.reaction {
	case domain.ReactionLiked:
		r.likes = max(r.likes-1, 0)
	case domain.ReactionDisliked:
		r.dislikes = max(r.dislikes-1, 0)
	}
	switch want {
	case domain.ReactionLiked:
		r.likes++
	case domain.ReactionDisliked:
		r.dislikes++
	}
	r.reaction = want
	return r
}

func (r reactionState) result() *domain.ReactionResult {
	return &domain.ReactionResult{
		IsLiked:      r.reaction.IsLiked(),
		LikeCount:    r.likes,
		IsDisliked:   r.reaction.IsDisliked(),
		DislikeCount: r.dislikes,
	}
}

type channelState struct {
	subscribed bool
	count      int
}

func channelOf(v domain.Video) channelState {
	return channelState{subscribed: v.Engagement.Subscribed, count: v.Uploader.SubscriberCount}
}

func (c channelState) applyTo(v *domain.Video) {
	v.Engagement.Subscribed = c.subscribed
	v.Uploader.SubscriberCount = c.count
}

func (c channelState) toggle() channelState {
	if c.subscribed {
		c.count = max(c.count-1, 0)
	} else {
		c.count++
	}
	c.subscribed = !c.subscribed
	return c
}

func (c channelState) result() *domain.SubscriptionResult {
	return &domain.SubscriptionResult{IsSubscribed: c.subscribed, SubscriberCount: c.count}
}

func videoKey(id string) string   { return "video:" + id }
func channelKey(id string) string { return "channel:" + id }

// Like marks the video liked, clearing a dislike. The change is applied to
// every held copy at once and reconciled with the server's answer. Liking
// an already liked video changes nothing.
func (s *Store) Like(ctx context.Context, videoID string) (*domain.ReactionResult, error) {
	return s.react(ctx, videoID, domain.ReactionLiked)
}

// Dislike marks the video disliked, clearing a like
func (s *Store) Dislike(ctx context.Context, videoID string) (*domain.ReactionResult, error) {
	return s.react(ctx, videoID, domain.ReactionDisliked)
}

func (s *Store) react(ctx context.Context, videoID string, want domain.Reaction) (*domain.ReactionResult, error) {
	op := "like video"
	if want == domain.ReactionDisliked {
		op = "dislike video"
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !s.authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := videoKey(videoID)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	prev, known := s.reactionLocked(videoID)
	if known && prev.reaction == want {
		s.mu.Unlock()
		return prev.result(), nil
	}
	if !known && s.remote == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}

	next := prev.choose(want)
	if known {
		s.applyReactionLocked(videoID, next)
	}
	if s.remote == nil {
		s.mu.Unlock()
		s.publish(ChangeEngagement)
		s.logger.Debug("reaction recorded locally", "videoID", videoID, "reaction", want.String())
		return next.result(), nil
	}
	seq := s.beginOpLocked(key)
	s.mu.Unlock()
	if known {
		s.publish(ChangeEngagement)
	}

	call := s.remote.Like
	if want == domain.ReactionDisliked {
		call = s.remote.Dislike
	}
	res, err := call(ctx, videoID)

	s.mu.Lock()
	latest := s.endOpLocked(key, seq)
	switch {
	case ctx.Err() != nil:
		s.mu.Unlock()
		s.logger.Debug("reaction abandoned", "videoID", videoID)
		return next.result(), ctx.Err()

	case err != nil:
		if latest && known {
			s.applyReactionLocked(videoID, prev)
		}
		cur, _ := s.reactionLocked(videoID)
		s.mu.Unlock()
		s.publish(ChangeEngagement)
		s.report(op, err)
		return cur.result(), err

	case !latest:
		cur, _ := s.reactionLocked(videoID)
		s.mu.Unlock()
		s.logger.Debug("dropping stale reaction confirmation", "videoID", videoID)
		return cur.result(), nil

	default:
		confirmed := reactionState{reaction: res.Reaction(), likes: res.LikeCount, dislikes: res.DislikeCount}
		s.applyReactionLocked(videoID, confirmed)
		s.mu.Unlock()
		s.publish(ChangeEngagement)
		return confirmed.result(), nil
	}
}

// Subscribe toggles the viewer's subscription to channelID and adjusts the
// subscriber count on every held video from that channel
func (s *Store) Subscribe(ctx context.Context, channelID string) (*domain.SubscriptionResult, error) {
	const op = "update subscription"
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !s.authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := channelKey(channelID)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	prev, known := s.channelLocked(channelID)
	if !known && s.remote == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}

	next := prev.toggle()
	if known {
		s.applyChannelLocked(channelID, next)
	}
	if s.remote == nil {
		s.mu.Unlock()
		s.publish(ChangeEngagement)
		s.logger.Debug("subscription recorded locally", "channelID", channelID, "subscribed", next.subscribed)
		return next.result(), nil
	}
	seq := s.beginOpLocked(key)
	s.mu.Unlock()
	if known {
		s.publish(ChangeEngagement)
	}

	res, err := s.remote.Subscribe(ctx, channelID)

	s.mu.Lock()
	latest := s.endOpLocked(key, seq)
	switch {
	case ctx.Err() != nil:
		s.mu.Unlock()
		s.logger.Debug("subscription abandoned", "channelID", channelID)
		return next.result(), ctx.Err()

	case err != nil:
		if latest && known {
			s.applyChannelLocked(channelID, prev)
		}
		cur, _ := s.channelLocked(channelID)
		s.mu.Unlock()
		s.publish(ChangeEngagement)
		s.report(op, err)
		return cur.result(), err

	case !latest:
		cur, _ := s.channelLocked(channelID)
		s.mu.Unlock()
		s.logger.Debug("dropping stale subscription confirmation", "channelID", channelID)
		return cur.result(), nil

	default:
		confirmed := channelState{subscribed: res.IsSubscribed, count: res.SubscriberCount}
		s.applyChannelLocked(channelID, confirmed)
		s.mu.Unlock()
		s.publish(ChangeEngagement)
		return confirmed.result(), nil
	}
}

// beginOpLocked starts a mutation on key and returns its sequence number.
// Only the latest mutation per key may confirm or roll back.
func (s *Store) beginOpLocked(key string) uint64 {
	s.seq[key]++
	s.pending[key] = true
	return s.seq[key]
}

// endOpLocked reports whether seq is still the latest mutation on key
func (s *Store) endOpLocked(key string, seq uint64) bool {
	if s.seq[key] != seq {
		return false
	}
	delete(s.pending, key)
	return true
}

// reactionLocked finds the viewer's reaction to a video from held copies,
// local knowledge, or, offline, the bundled data
func (s *Store) reactionLocked(videoID string) (reactionState, bool) {
	var (
		found bool
		st    reactionState
	)
	s.eachHeldLocked(func(v *domain.Video) {
		if !found && v.ID == videoID {
			st, found = reactionOf(*v), true
		}
	})
	if found {
		return st, true
	}
	if st, ok := s.reactions[videoID]; ok {
		return st, true
	}
	if s.remote == nil && s.fallback != nil {
		if v, err := s.fallback.GetVideo(context.Background(), videoID); err == nil && v != nil {
			return reactionOf(*v), true
		}
	}
	return reactionState{}, false
}

func (s *Store) applyReactionLocked(videoID string, st reactionState) {
	s.reactions[videoID] = st
	s.eachHeldLocked(func(v *domain.Video) {
		if v.ID == videoID {
			st.applyTo(v)
		}
	})
}

// channelLocked finds the viewer's subscription to a channel from held
// copies, local knowledge, or, offline, the bundled data
func (s *Store) channelLocked(channelID string) (channelState, bool) {
	var (
		found bool
		st    channelState
	)
	s.eachHeldLocked(func(v *domain.Video) {
		if !found && v.Uploader.ID == channelID {
			st, found = channelOf(*v), true
		}
	})
	if found {
		return st, true
	}
	if st, ok := s.channels[channelID]; ok {
		return st, true
	}
	if s.remote == nil && s.fallback != nil {
		page := s.fallback.FeedFor(map[string]bool{channelID: true}, domain.Filter{Limit: 1})
		if len(page.Videos) > 0 {
			return channelOf(page.Videos[0]), true
		}
	}
	return channelState{}, false
}

func (s *Store) applyChannelLocked(channelID string, st channelState) {
	s.channels[channelID] = st
	s.eachHeldLocked(func(v *domain.Video) {
		if v.Uploader.ID == channelID {
			st.applyTo(v)
		}
	})
}
