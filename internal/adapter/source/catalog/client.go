package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/reel/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Client implements domain.CatalogClient and domain.EngagementClient
// against the catalog HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryDelay sets the base delay between retries of 5xx responses
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a new catalog API client. token may be empty for
// anonymous browsing.
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an HTTP request against the catalog API.
// Includes retry logic with exponential backoff for 5xx server errors.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		c.logger.Debug("catalog request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("catalog request failed", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrNetworkFailure, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			return respBody, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("catalog rate limited request",
				"path", path,
				"retryAfter", resp.Header.Get("Retry-After"),
			)
			return nil, domain.ErrRateLimited
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			lastErr = fmt.Errorf("%w: server error %d - %s", domain.ErrNetworkFailure, resp.StatusCode, errorMessage(respBody))
			c.logger.Warn("catalog server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		default:
			c.logger.Error("catalog request error", "status", resp.StatusCode, "body", string(respBody))
			return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, errorMessage(respBody))
		}
	}

	c.logger.Error("catalog request failed after retries", "error", lastErr, "url", reqURL)
	return nil, lastErr
}

// errorMessage extracts the error field from an API error body
func errorMessage(body []byte) string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, dest any) error {
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// filterQuery encodes a filter using the API's parameter names
func filterQuery(filter domain.Filter) url.Values {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	query.Set("page", strconv.Itoa(filter.Page))
	query.Set("limit", strconv.Itoa(filter.Limit))
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.SortBy != "" {
		query.Set("sortBy", string(filter.SortBy))
	}
	return query
}

// ListVideos returns one page of videos
func (c *Client) ListVideos(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	filter = filter.Normalize()
	var resp VideoListResponse
	if err := c.getJSON(ctx, "/api/videos", filterQuery(filter), &resp); err != nil {
		return domain.EmptyPage(), err
	}
	return MapPage(resp, filter), nil
}

// GetVideo returns a single video with the viewer's engagement
func (c *Client) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	var dto VideoDTO
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(id), nil, &dto); err != nil {
		return nil, err
	}
	v := MapVideo(dto)
	return &v, nil
}

// SearchVideos returns videos whose titles match query
func (c *Client) SearchVideos(ctx context.Context, query string, filter domain.Filter) (domain.Page, error) {
	filter.Search = query
	filter = filter.Normalize()
	if filter.Search == "" {
		return domain.EmptyPage(), nil
	}
	var resp VideoListResponse
	if err := c.getJSON(ctx, "/api/videos", filterQuery(filter), &resp); err != nil {
		return domain.EmptyPage(), err
	}
	return MapPage(resp, filter), nil
}

// SubscriptionFeed returns videos from channels the viewer follows
func (c *Client) SubscriptionFeed(ctx context.Context, filter domain.Filter) (domain.Page, error) {
	filter = filter.Normalize()
	var resp VideoListResponse
	if err := c.getJSON(ctx, "/api/subscriptions/feed", filterQuery(filter), &resp); err != nil {
		return domain.EmptyPage(), err
	}
	return MapPage(resp, filter), nil
}

// Like records a like for the signed-in viewer
func (c *Client) Like(ctx context.Context, videoID string) (*domain.ReactionResult, error) {
	return c.react(ctx, videoID, "like")
}

// Dislike records a dislike for the signed-in viewer
func (c *Client) Dislike(ctx context.Context, videoID string) (*domain.ReactionResult, error) {
	return c.react(ctx, videoID, "dislike")
}

func (c *Client) react(ctx context.Context, videoID, action string) (*domain.ReactionResult, error) {
	if videoID == "" {
		return nil, domain.ErrInvalidInput
	}
	var resp ReactionResponse
	path := fmt.Sprintf("/api/videos/%s/%s", url.PathEscape(videoID), action)
	if err := c.postJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return MapReaction(resp), nil
}

// Subscribe toggles the viewer's subscription to a channel
func (c *Client) Subscribe(ctx context.Context, channelID string) (*domain.SubscriptionResult, error) {
	if channelID == "" {
		return nil, domain.ErrInvalidInput
	}
	var resp SubscriptionResponse
	if err := c.postJSON(ctx, "/api/subscriptions/"+url.PathEscape(channelID), nil, &resp); err != nil {
		return nil, err
	}
	return MapSubscription(resp), nil
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	var resp LoginResponse
	err := c.postJSON(ctx, "/api/auth/login", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAuthFailed
		}
		return nil, err
	}
	if resp.Token == "" {
		return nil, domain.ErrAuthFailed
	}
	return &domain.AuthResult{
		Token:    resp.Token,
		UserID:   resp.User.ID,
		Username: resp.User.Username,
	}, nil
}
