// Package devserver implements the catalog HTTP API over the bundled
// dataset. It exists for local development and demos: reactions and
// subscriptions live in memory and vanish on restart.
package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"

	api "github.com/mmcdole/reel/internal/adapter/source/catalog"
	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Config configures a Server
type Config struct {
	Secret        string            // HMAC key for bearer tokens
	Users         map[string]string // username -> password
	RatePerSecond float64           // sustained requests per client; 0 disables limiting
	Burst         int
	BcryptCost    int
	Clock         clockwork.Clock
	Logger        *slog.Logger
}

// Server serves the catalog API
type Server struct {
	router chi.Router
	state  *state
	auth   *authenticator
	logger *slog.Logger
}

// New creates a server over data
func New(cfg Config, data *fallback.Dataset) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if data == nil {
		return nil, errors.New("dataset is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	auth, err := newAuthenticator(cfg.Secret, cfg.Users, cfg.BcryptCost, cfg.Clock.Now)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		state:  newState(data),
		auth:   auth,
		logger: cfg.Logger,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)
	if cfg.RatePerSecond > 0 {
		s.router.Use(newLimiter(cfg.Clock, cfg.RatePerSecond, max(cfg.Burst, 1)).middleware)
	}
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/auth/login", s.handleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(s.auth.identify)
		r.Get("/api/videos", s.handleListVideos)
		r.Get("/api/videos/{id}", s.handleGetVideo)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/api/videos/{id}/like", s.handleReaction(domain.ReactionLiked))
			r.Post("/api/videos/{id}/dislike", s.handleReaction(domain.ReactionDisliked))
			r.Get("/api/subscriptions/feed", s.handleFeed)
			r.Post("/api/subscriptions/{channelId}", s.handleSubscribe)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acct, token, err := s.auth.login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errBadCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error("login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "could not sign in")
		return
	}
	s.logger.Info("viewer signed in", "username", acct.username)
	writeJSON(w, http.StatusOK, api.LoginResponse{
		Token: token,
		User:  api.UserDTO{ID: acct.id, Username: acct.username},
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	page := s.state.list(userIDFrom(r.Context()), filter)
	writeJSON(w, http.StatusOK, pageResponse(page))
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := s.state.video(userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	writeJSON(w, http.StatusOK, api.DTOFromVideo(*v))
}

func (s *Server) handleReaction(want domain.Reaction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.state.react(userIDFrom(r.Context()), chi.URLParam(r, "id"), want)
		if !ok {
			writeError(w, http.StatusNotFound, "video not found")
			return
		}
		writeJSON(w, http.StatusOK, api.ReactionResponse{
			IsLiked:      res.IsLiked,
			LikeCount:    res.LikeCount,
			IsDisliked:   res.IsDisliked,
			DislikeCount: res.DislikeCount,
		})
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page := s.state.feed(userIDFrom(r.Context()), parseFilter(r))
	writeJSON(w, http.StatusOK, pageResponse(page))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	res, ok := s.state.toggleSubscription(userIDFrom(r.Context()), chi.URLParam(r, "channelId"))
	if !ok {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	writeJSON(w, http.StatusOK, api.SubscriptionResponse{
		IsSubscribed:    res.IsSubscribed,
		SubscriberCount: res.SubscriberCount,
	})
}

// parseFilter reads the list parameters; malformed numbers fall back to
// the defaults
func parseFilter(r *http.Request) domain.Filter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return domain.Filter{
		Category: q.Get("category"),
		Page:     page,
		Limit:    min(limit, 100),
		Search:   q.Get("search"),
		SortBy:   domain.SortBy(q.Get("sortBy")),
	}.Normalize()
}

func pageResponse(page domain.Page) api.VideoListResponse {
	resp := api.VideoListResponse{
		Videos: make([]api.VideoDTO, 0, len(page.Videos)),
		Total:  page.Total,
		Page:   page.Page,
		Limit:  page.Limit,
	}
	for _, v := range page.Videos {
		resp.Videos = append(resp.Videos, api.DTOFromVideo(v))
	}
	return resp
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
