package adapter

// Session is the signed-in viewer derived from the server config.
// It implements domain.Viewer.
type Session struct {
	token    string
	userID   string
	username string
	local    bool
}

// NewSession builds a session from stored credentials
func NewSession(cfg ServerConfig) *Session {
	return &Session{
		token:    cfg.Token,
		userID:   cfg.UserID,
		username: cfg.Username,
	}
}

// LocalSession is the viewer in offline mode. Engagement stays in memory,
// so no token is needed to like or subscribe.
func LocalSession(username string) *Session {
	if username == "" {
		username = "local"
	}
	return &Session{userID: "local", username: username, local: true}
}

// Authenticated reports whether a bearer token is present or the session
// is local
func (s *Session) Authenticated() bool {
	return s != nil && (s.token != "" || s.local)
}

// UserID returns the viewer's id, empty when signed out
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}

// Username returns the display name of the viewer
func (s *Session) Username() string {
	if s == nil {
		return ""
	}
	return s.username
}

// Token returns the bearer token
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}
