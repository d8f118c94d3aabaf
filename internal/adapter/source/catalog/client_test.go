package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/reel/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, token, nil, WithRetryDelay(time.Millisecond))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListVideosEncodesFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("category") != "Punjabi" || q.Get("page") != "2" || q.Get("limit") != "5" || q.Get("sortBy") != "views" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, VideoListResponse{
			Videos: []VideoDTO{{ID: "3", Title: "Softly", Uploader: UploaderDTO{ID: "karan-aujla"}}},
			Total:  11,
		})
	}, "")

	page, err := client.ListVideos(context.Background(), domain.Filter{
		Category: " Punjabi ", Page: 2, Limit: 5, SortBy: domain.SortViews,
	})
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if page.Total != 11 || page.Page != 2 || page.Limit != 5 {
		t.Errorf("unexpected page metadata %+v", page)
	}
	if len(page.Videos) != 1 || page.Videos[0].Uploader.ID != "karan-aujla" {
		t.Errorf("unexpected videos %+v", page.Videos)
	}
}

func TestGetVideoMapsEngagement(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", got)
		}
		writeJSON(w, http.StatusOK, VideoDTO{
			ID: "10", Title: "Beautiful Morning Bhajans", Duration: 5107,
			IsLikedByUser: true, IsSubscribedByUser: true,
			CreatedAt: "2024-02-01T06:00:00Z",
		})
	}, "secret")

	v, err := client.GetVideo(context.Background(), "10")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if v.Engagement.Reaction != domain.ReactionLiked || !v.Engagement.Subscribed {
		t.Errorf("unexpected engagement %+v", v.Engagement)
	}
	if v.CreatedAt.IsZero() {
		t.Error("createdAt should be parsed")
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthFailed},
		{"forbidden", http.StatusForbidden, domain.ErrAuthFailed},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, domain.ErrNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, ErrorResponse{Error: "nope"})
			}, "")
			_, err := client.GetVideo(context.Background(), "1")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, VideoListResponse{Videos: []VideoDTO{}})
	}, "")

	if _, err := client.ListVideos(context.Background(), domain.Filter{}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestRateLimitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, "")

	_, err := client.Like(context.Background(), "1")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestTransportFailureIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL, "", nil)

	_, err := client.ListVideos(context.Background(), domain.Filter{})
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Errorf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestCanceledContextIsNotNetworkFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VideoListResponse{})
	}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListVideos(ctx, domain.Filter{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrNetworkFailure) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSearchEmptyQueryMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, "")

	page, err := client.SearchVideos(context.Background(), "   ", domain.Filter{})
	if err != nil || page.Total != 0 || page.Videos == nil {
		t.Errorf("expected empty page, got %+v, %v", page, err)
	}
	if calls.Load() != 0 {
		t.Error("empty search should not reach the server")
	}
}

func TestEngagementEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/api/videos/7/like":
			writeJSON(w, http.StatusOK, ReactionResponse{IsLiked: true, LikeCount: 11, DislikeCount: 2})
		case "/api/videos/7/dislike":
			writeJSON(w, http.StatusOK, ReactionResponse{IsDisliked: true, LikeCount: 10, DislikeCount: 3})
		case "/api/subscriptions/t-series":
			writeJSON(w, http.StatusOK, SubscriptionResponse{IsSubscribed: true, SubscriberCount: 42})
		default:
			http.NotFound(w, r)
		}
	}, "secret")
	ctx := context.Background()

	liked, err := client.Like(ctx, "7")
	if err != nil || !liked.IsLiked || liked.LikeCount != 11 {
		t.Errorf("Like: %+v, %v", liked, err)
	}
	disliked, err := client.Dislike(ctx, "7")
	if err != nil || disliked.Reaction() != domain.ReactionDisliked {
		t.Errorf("Dislike: %+v, %v", disliked, err)
	}
	sub, err := client.Subscribe(ctx, "t-series")
	if err != nil || !sub.IsSubscribed || sub.SubscriberCount != 42 {
		t.Errorf("Subscribe: %+v, %v", sub, err)
	}
	if _, err := client.Subscribe(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "hunter2" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, LoginResponse{Token: "tok", User: UserDTO{ID: "u1", Username: req.Username}})
	}, "")
	ctx := context.Background()

	res, err := client.Login(ctx, "asha", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "tok" || res.UserID != "u1" || res.Username != "asha" {
		t.Errorf("unexpected result %+v", res)
	}
	if _, err := client.Login(ctx, "asha", "wrong"); !errors.Is(err, domain.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}
